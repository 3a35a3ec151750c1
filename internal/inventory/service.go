package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"inventrack/internal/auth"
	"inventrack/internal/policy"
	"inventrack/internal/queue"
)

const (
	// SearchLimit caps search_inventory results.
	SearchLimit = 25
	// DefaultMovementWindow is the look-back when no start date is given.
	DefaultMovementWindow = 90 * 24 * time.Hour
	// DefaultPeriodDays is the analytics look-back when none is given.
	DefaultPeriodDays = 30
	// MaxPeriodDays bounds analytics look-back.
	MaxPeriodDays = 3650
	// TopMoversLimit caps the top_movers metric.
	TopMoversLimit = 10
)

// Analytics metric types.
const (
	MetricOverview          = "overview"
	MetricCategoryBreakdown = "category_breakdown"
	MetricMovementSummary   = "movement_summary"
	MetricTopMovers         = "top_movers"
)

// Option is a functional option for configuring Service.
type Option func(*Service)

// WithLogger sets a structured logger. If l is nil it is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source. If now is nil it is ignored.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLanes sets the queue serializing threshold writes per product.
func WithLanes(q *queue.LaneQueue) Option {
	return func(s *Service) {
		if q != nil {
			s.lanes = q
		}
	}
}

// Service holds the data access functions behind the assistant's tools.
// Each call performs bounded reads, and UpdateThreshold a single write.
type Service struct {
	store  Store
	lanes  *queue.LaneQueue
	now    func() time.Time
	logger *slog.Logger
}

// NewService returns a Service over store. Panics if store is nil.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("inventory: store must not be nil")
	}
	s := &Service{store: store, lanes: queue.NewLaneQueue(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// =============================================================================
// search_inventory
// =============================================================================

type SearchParams struct {
	Query        string
	Category     string
	Status       StockStatus
	LowStockOnly bool
}

type SearchItem struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Quantity      int         `json:"quantity"`
	MinStockLevel int         `json:"min_stock_level"`
	Status        StockStatus `json:"status"`
	UnitPrice     float64     `json:"unit_price"`
	TotalValue    float64     `json:"total_value"`
}

type SearchResult struct {
	Count    int          `json:"count"`
	Products []SearchItem `json:"products"`
}

// SearchInventory returns up to SearchLimit products ordered by name.
func (s *Service) SearchInventory(ctx context.Context, p SearchParams) (SearchResult, error) {
	products, err := s.store.SearchProducts(ctx, ProductFilter{
		Query:        p.Query,
		Category:     p.Category,
		Status:       p.Status,
		LowStockOnly: p.LowStockOnly,
		Limit:        SearchLimit,
	})
	if err != nil {
		return SearchResult{}, err
	}
	items := make([]SearchItem, 0, len(products))
	for _, pr := range products {
		items = append(items, SearchItem{
			ID:            pr.ID,
			Name:          pr.Name,
			SKU:           pr.SKU,
			Description:   pr.Description,
			Category:      pr.Category(),
			Quantity:      pr.Quantity,
			MinStockLevel: pr.MinStockLevel,
			Status:        pr.Status,
			UnitPrice:     pr.UnitPrice,
			TotalValue:    round2(float64(pr.Quantity) * pr.UnitPrice),
		})
	}
	return SearchResult{Count: len(items), Products: items}, nil
}

// =============================================================================
// get_stock_movements
// =============================================================================

type MovementParams struct {
	ProductID string
	StartDate string // YYYY-MM-DD or RFC 3339; empty means End - 90 days
	EndDate   string // YYYY-MM-DD (inclusive) or RFC 3339; empty means now
}

type ProductSnapshot struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Quantity      int         `json:"quantity"`
	MinStockLevel int         `json:"min_stock_level"`
	Status        StockStatus `json:"status"`
	UnitPrice     float64     `json:"unit_price"`
}

func snapshot(p Product) ProductSnapshot {
	return ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Quantity:      p.Quantity,
		MinStockLevel: p.MinStockLevel,
		Status:        p.Status,
		UnitPrice:     p.UnitPrice,
	}
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

type MovementSummary struct {
	TotalMovements   int     `json:"total_movements"`
	TotalInbound     int     `json:"total_inbound"`
	TotalOutbound    int     `json:"total_outbound"`
	TotalAdjustments int     `json:"total_adjustments"`
	NetChange        int     `json:"net_change"`
	AvgDailyOutbound float64 `json:"avg_daily_outbound"`
	AvgDailyInbound  float64 `json:"avg_daily_inbound"`
}

type MovementEntry struct {
	Date     time.Time    `json:"date"`
	Type     MovementType `json:"type"`
	Quantity int          `json:"quantity"`
	Notes    string       `json:"notes,omitempty"`
}

type MovementReport struct {
	Product   ProductSnapshot `json:"product"`
	Period    Period          `json:"period"`
	Summary   MovementSummary `json:"summary"`
	Movements []MovementEntry `json:"movements"`
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A date-only value is the start
// of that UTC day, or its last millisecond when endOfDay is set.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD or RFC 3339", ErrInvalidArgument, v)
	}
	if endOfDay {
		return d.Add(24*time.Hour - time.Millisecond), nil
	}
	return d, nil
}

// Window resolves the movement window for the given dates at now.
func Window(startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if endDate != "" {
		t, err := parseDate(endDate, true)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.Add(-DefaultMovementWindow)
	if startDate != "" {
		t, err := parseDate(startDate, false)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date is after end_date", ErrInvalidArgument)
	}
	return start, end, nil
}

// windowDays is the whole number of days the window touches, at least 1.
func windowDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// StockMovements returns a product's movements in the window with totals
// and average daily rates.
func (s *Service) StockMovements(ctx context.Context, p MovementParams) (MovementReport, error) {
	if strings.TrimSpace(p.ProductID) == "" {
		return MovementReport{}, fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
	}
	start, end, err := Window(p.StartDate, p.EndDate, s.now())
	if err != nil {
		return MovementReport{}, err
	}
	product, err := s.store.GetProduct(ctx, p.ProductID)
	if err != nil {
		return MovementReport{}, err
	}
	movements, err := s.store.ListMovements(ctx, p.ProductID, start, end)
	if err != nil {
		return MovementReport{}, err
	}

	var sum MovementSummary
	entries := make([]MovementEntry, 0, len(movements))
	for _, m := range movements {
		switch m.MovementType {
		case MovementInbound:
			sum.TotalInbound += m.QuantityChange
		case MovementOutbound:
			sum.TotalOutbound += absInt(m.QuantityChange)
		default:
			sum.TotalAdjustments += m.QuantityChange
		}
		entries = append(entries, MovementEntry{
			Date:     m.CreatedAt,
			Type:     m.MovementType,
			Quantity: m.QuantityChange,
			Notes:    m.Notes,
		})
	}
	days := windowDays(start, end)
	sum.TotalMovements = len(movements)
	sum.NetChange = sum.TotalInbound - sum.TotalOutbound + sum.TotalAdjustments
	sum.AvgDailyInbound = round2(float64(sum.TotalInbound) / float64(days))
	sum.AvgDailyOutbound = round2(float64(sum.TotalOutbound) / float64(days))

	return MovementReport{
		Product:   snapshot(product),
		Period:    Period{Start: start, End: end, Days: days},
		Summary:   sum,
		Movements: entries,
	}, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// =============================================================================
// get_low_stock_items
// =============================================================================

type LowStockItem struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Category      string      `json:"category"`
	Quantity      int         `json:"quantity"`
	MinStockLevel int         `json:"min_stock_level"`
	Deficit       int         `json:"deficit"`
	UnitPrice     float64     `json:"unit_price"`
	Status        StockStatus `json:"status"`
}

type LowStockReport struct {
	Count int            `json:"count"`
	Items []LowStockItem `json:"items"`
}

// LowStockItems returns every product at or below its threshold, most
// critical first.
func (s *Service) LowStockItems(ctx context.Context) (LowStockReport, error) {
	products, err := s.store.LowStockProducts(ctx)
	if err != nil {
		return LowStockReport{}, err
	}
	items := make([]LowStockItem, 0, len(products))
	for _, p := range products {
		if !p.IsLowStock() {
			continue
		}
		items = append(items, LowStockItem{
			ID:            p.ID,
			Name:          p.Name,
			SKU:           p.SKU,
			Category:      p.Category(),
			Quantity:      p.Quantity,
			MinStockLevel: p.MinStockLevel,
			Deficit:       p.MinStockLevel - p.Quantity,
			UnitPrice:     p.UnitPrice,
			Status:        p.Status,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Deficit != b.Deficit {
			return a.Deficit > b.Deficit
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return LowStockReport{Count: len(items), Items: items}, nil
}

// =============================================================================
// get_analytics
// =============================================================================

type AnalyticsParams struct {
	MetricType string
	PeriodDays int // 0 means DefaultPeriodDays
}

type AnalyticsResult struct {
	Metric     string `json:"metric"`
	PeriodDays int    `json:"period_days,omitempty"`
	Data       any    `json:"data"`
}

// Analytics computes one aggregate metric.
func (s *Service) Analytics(ctx context.Context, p AnalyticsParams) (AnalyticsResult, error) {
	days := p.PeriodDays
	if days == 0 {
		days = DefaultPeriodDays
	}
	if days < 1 || days > MaxPeriodDays {
		return AnalyticsResult{}, fmt.Errorf("%w: period_days must be between 1 and %d", ErrInvalidArgument, MaxPeriodDays)
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	switch p.MetricType {
	case MetricOverview:
		stats, err := s.store.DashboardStats(ctx)
		if err != nil {
			return AnalyticsResult{}, err
		}
		stats.TotalValue = round2(stats.TotalValue)
		return AnalyticsResult{Metric: MetricOverview, Data: stats}, nil

	case MetricCategoryBreakdown:
		rows, err := s.store.CategoryBreakdown(ctx)
		if err != nil {
			return AnalyticsResult{}, err
		}
		for i := range rows {
			rows[i].TotalValue = round2(rows[i].TotalValue)
		}
		if rows == nil {
			rows = []CategoryStat{}
		}
		return AnalyticsResult{Metric: MetricCategoryBreakdown, Data: rows}, nil

	case MetricMovementSummary:
		totals, err := s.store.MovementTotals(ctx, since)
		if err != nil {
			return AnalyticsResult{}, err
		}
		return AnalyticsResult{Metric: MetricMovementSummary, PeriodDays: days, Data: totals}, nil

	case MetricTopMovers:
		movers, err := s.store.TopMovers(ctx, since, TopMoversLimit)
		if err != nil {
			return AnalyticsResult{}, err
		}
		if movers == nil {
			movers = []Mover{}
		}
		return AnalyticsResult{Metric: MetricTopMovers, PeriodDays: days, Data: movers}, nil

	default:
		return AnalyticsResult{}, fmt.Errorf("%w: unknown metric type %q", ErrInvalidArgument, p.MetricType)
	}
}

// =============================================================================
// update_stock_threshold
// =============================================================================

type ThresholdParams struct {
	ProductID    string
	NewThreshold float64
	Reason       string
}

type ThresholdUpdate struct {
	Success           bool            `json:"success"`
	Product           ProductSnapshot `json:"product"`
	PreviousThreshold int             `json:"previous_threshold"`
	NewThreshold      int             `json:"new_threshold"`
	Reason            string          `json:"reason"`
}

// UpdateThreshold sets a product's minimum stock level to the nearest
// integer of NewThreshold. The caller's role is checked here even though
// read-only callers are never offered this operation.
func (s *Service) UpdateThreshold(ctx context.Context, caller auth.Identity, p ThresholdParams) (ThresholdUpdate, error) {
	if !policy.CanWrite(caller.Role) {
		s.log().Warn("threshold update refused", "user_id", caller.UserID, "role", caller.Role, "product_id", p.ProductID)
		return ThresholdUpdate{}, fmt.Errorf("%w: only admins and managers can update stock thresholds", ErrForbidden)
	}
	if strings.TrimSpace(p.ProductID) == "" {
		return ThresholdUpdate{}, fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
	}
	if math.IsNaN(p.NewThreshold) || p.NewThreshold < 0 || p.NewThreshold > math.MaxInt32 {
		return ThresholdUpdate{}, fmt.Errorf("%w: new_threshold must be between 0 and %d", ErrInvalidArgument, math.MaxInt32)
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		return ThresholdUpdate{}, fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}
	level := int(math.Round(p.NewThreshold))

	var out ThresholdUpdate
	err := s.lanes.Do(ctx, p.ProductID, func(ctx context.Context) error {
		before, err := s.store.GetProduct(ctx, p.ProductID)
		if err != nil {
			return err
		}
		after, err := s.store.UpdateThreshold(ctx, p.ProductID, level, s.now().UTC())
		if err != nil {
			return err
		}
		out = ThresholdUpdate{
			Success:           true,
			Product:           snapshot(after),
			PreviousThreshold: before.MinStockLevel,
			NewThreshold:      level,
			Reason:            reason,
		}
		return nil
	})
	if err != nil {
		return ThresholdUpdate{}, err
	}

	s.log().Info("threshold updated",
		"user_id", caller.UserID,
		"product_id", p.ProductID,
		"previous", out.PreviousThreshold,
		"new", out.NewThreshold,
	)
	audit := Notification{
		Type:      NotifySystem,
		ProductID: p.ProductID,
		Title:     "Stock threshold updated",
		Message: fmt.Sprintf("%s (%s): minimum stock %d -> %d by %s. Reason: %s",
			out.Product.Name, out.Product.SKU, out.PreviousThreshold, out.NewThreshold, caller.Email, reason),
	}
	if err := s.store.AddNotification(ctx, audit); err != nil {
		s.log().Warn("threshold audit notification failed", "product_id", p.ProductID, "error", err)
	}
	return out, nil
}

// =============================================================================
// Low stock scan
// =============================================================================

// ScanLowStock raises a low_stock notification for every product at or below
// its threshold that has no unread one yet. Returns how many were created.
func (s *Service) ScanLowStock(ctx context.Context) (int, error) {
	products, err := s.store.LowStockProducts(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		exists, err := s.store.HasUnreadNotification(ctx, p.ID, NotifyLowStock)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		n := Notification{
			Type:      NotifyLowStock,
			ProductID: p.ID,
			Title:     "Low stock: " + p.Name,
			Message: fmt.Sprintf("%s (%s) has %d units, at or below its minimum of %d.",
				p.Name, p.SKU, p.Quantity, p.MinStockLevel),
		}
		if err := s.store.AddNotification(ctx, n); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		s.log().Info("low stock notifications raised", "count", created)
	}
	return created, nil
}

// Notifications returns the caller's unread notifications.
func (s *Service) Notifications(ctx context.Context, caller auth.Identity, limit int) ([]Notification, error) {
	return s.store.UnreadNotifications(ctx, caller.UserID, limit)
}

// MarkRead marks one of the caller's notifications read.
func (s *Service) MarkRead(ctx context.Context, caller auth.Identity, id string) error {
	return s.store.MarkNotificationRead(ctx, caller.UserID, id)
}
