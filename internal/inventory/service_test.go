package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
)

func newTestService(t *testing.T) (*Service, *SQLStore) {
	t.Helper()
	s := newTestStore(t)
	return NewService(s, WithClock(func() time.Time { return testNow })), s
}

var (
	viewer  = auth.Identity{UserID: "v1", Email: "viewer@example.com", Role: domain.RoleViewer}
	manager = auth.Identity{UserID: "m1", Email: "manager@example.com", Role: domain.RoleManager}
)

func TestNewService_WhenStoreNil_ShouldPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewService(nil)
}

// =============================================================================
// SearchInventory
// =============================================================================

func TestSearchInventory_ShouldShapeRowsWithTotalValueAndCategory(t *testing.T) {
	svc, s := newTestService(t)
	mustProduct(t, s, Product{Name: "Cable", SKU: "C1", Quantity: 3, UnitPrice: 4.99, MinStockLevel: 1})

	res, err := svc.SearchInventory(context.Background(), SearchParams{Query: "cable"})
	if err != nil {
		t.Fatalf("SearchInventory: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("want 1, got %d", res.Count)
	}
	item := res.Products[0]
	if item.TotalValue != 14.97 {
		t.Errorf("total_value: want 14.97, got %v", item.TotalValue)
	}
	if item.Category != UncategorizedName {
		t.Errorf("category: want %q, got %q", UncategorizedName, item.Category)
	}
}

func TestSearchInventory_ShouldCapAt25OrderedByName(t *testing.T) {
	svc, s := newTestService(t)
	for i := 0; i < 30; i++ {
		mustProduct(t, s, Product{Name: fmt.Sprintf("Item %02d", 29-i), SKU: fmt.Sprintf("SKU-%02d", i)})
	}

	res, err := svc.SearchInventory(context.Background(), SearchParams{})
	if err != nil {
		t.Fatalf("SearchInventory: %v", err)
	}
	if res.Count != SearchLimit || len(res.Products) != SearchLimit {
		t.Fatalf("want %d rows, got %d", SearchLimit, res.Count)
	}
	if res.Products[0].Name != "Item 00" || res.Products[24].Name != "Item 24" {
		t.Errorf("ordering: first=%q last=%q", res.Products[0].Name, res.Products[24].Name)
	}
}

func TestSearchInventory_WhenLowStockOnly_ShouldReturnExactlyLowRows(t *testing.T) {
	svc, s := newTestService(t)
	mustProduct(t, s, Product{Name: "At threshold", SKU: "A", Quantity: 5, MinStockLevel: 5})
	mustProduct(t, s, Product{Name: "Below", SKU: "B", Quantity: 1, MinStockLevel: 5})
	mustProduct(t, s, Product{Name: "Above", SKU: "C", Quantity: 6, MinStockLevel: 5})

	res, err := svc.SearchInventory(context.Background(), SearchParams{LowStockOnly: true})
	if err != nil {
		t.Fatalf("SearchInventory: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("want 2, got %d", res.Count)
	}
	for _, p := range res.Products {
		if p.Quantity > p.MinStockLevel {
			t.Errorf("%s is not low stock", p.SKU)
		}
	}
}

// =============================================================================
// StockMovements
// =============================================================================

func TestStockMovements_WhenNoDates_ShouldUse90DayWindowEndingNow(t *testing.T) {
	// Given: outbound movements inside and just outside the default window
	svc, s := newTestService(t)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1", Quantity: 40, MinStockLevel: 10})
	mustMovement(t, s, p.ID, MovementOutbound, -45, testNow.Add(-89*24*time.Hour))
	mustMovement(t, s, p.ID, MovementOutbound, -45, testNow.Add(-time.Hour))
	mustMovement(t, s, p.ID, MovementInbound, 100, testNow.Add(-91*24*time.Hour))

	// When: requesting movements with no dates
	rep, err := svc.StockMovements(context.Background(), MovementParams{ProductID: p.ID})

	// Then: window is [now-90d, now], days=90, averages use 90
	if err != nil {
		t.Fatalf("StockMovements: %v", err)
	}
	if !rep.Period.End.Equal(testNow) || !rep.Period.Start.Equal(testNow.Add(-90*24*time.Hour)) {
		t.Errorf("period: %+v", rep.Period)
	}
	if rep.Period.Days != 90 {
		t.Errorf("days: want 90, got %d", rep.Period.Days)
	}
	if rep.Summary.TotalOutbound != 90 || rep.Summary.TotalInbound != 0 {
		t.Errorf("summary: %+v", rep.Summary)
	}
	if rep.Summary.AvgDailyOutbound != 1 {
		t.Errorf("avg_daily_outbound: want 1, got %v", rep.Summary.AvgDailyOutbound)
	}
	if rep.Summary.NetChange != -90 {
		t.Errorf("net_change: want -90, got %d", rep.Summary.NetChange)
	}
	if len(rep.Movements) != 2 {
		t.Errorf("movements: want 2, got %d", len(rep.Movements))
	}
}

func TestStockMovements_WhenDateOnlyRange_ShouldIncludeWholeEndDay(t *testing.T) {
	svc, s := newTestService(t)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1"})
	mustMovement(t, s, p.ID, MovementInbound, 7, time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC))
	mustMovement(t, s, p.ID, MovementAdjustment, -2, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))

	rep, err := svc.StockMovements(context.Background(), MovementParams{ProductID: p.ID, StartDate: "2026-01-01", EndDate: "2026-01-31"})
	if err != nil {
		t.Fatalf("StockMovements: %v", err)
	}
	if rep.Summary.TotalMovements != 2 {
		t.Errorf("want 2 movements, got %d", rep.Summary.TotalMovements)
	}
	if rep.Period.Days != 31 {
		t.Errorf("days: want 31, got %d", rep.Period.Days)
	}
	if rep.Summary.TotalAdjustments != -2 || rep.Summary.NetChange != 5 {
		t.Errorf("summary: %+v", rep.Summary)
	}
	if rep.Summary.AvgDailyInbound != 0.23 {
		t.Errorf("avg_daily_inbound: want 0.23, got %v", rep.Summary.AvgDailyInbound)
	}
}

func TestStockMovements_WhenZeroLengthWindow_ShouldUseOneDay(t *testing.T) {
	svc, s := newTestService(t)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1"})
	at := "2026-02-01T10:00:00Z"

	rep, err := svc.StockMovements(context.Background(), MovementParams{ProductID: p.ID, StartDate: at, EndDate: at})
	if err != nil {
		t.Fatalf("StockMovements: %v", err)
	}
	if rep.Period.Days != 1 {
		t.Errorf("days: want 1, got %d", rep.Period.Days)
	}
}

func TestStockMovements_WhenArgumentsBad_ShouldReturnInvalidArgument(t *testing.T) {
	svc, s := newTestService(t)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1"})

	tests := []MovementParams{
		{ProductID: ""},
		{ProductID: p.ID, StartDate: "yesterday"},
		{ProductID: p.ID, EndDate: "31/01/2026"},
		{ProductID: p.ID, StartDate: "2026-02-10", EndDate: "2026-02-01"},
	}
	for _, tt := range tests {
		if _, err := svc.StockMovements(context.Background(), tt); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%+v: want ErrInvalidArgument, got %v", tt, err)
		}
	}
}

func TestStockMovements_WhenProductMissing_ShouldReturnErrNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.StockMovements(context.Background(), MovementParams{ProductID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

// =============================================================================
// LowStockItems
// =============================================================================

func TestLowStockItems_ShouldComputeDeficitAndSortDeterministically(t *testing.T) {
	svc, s := newTestService(t)
	mustProduct(t, s, Product{ID: "id-b", Name: "Bolts", SKU: "B", Quantity: 2, MinStockLevel: 10})
	mustProduct(t, s, Product{ID: "id-a", Name: "Anchors", SKU: "A", Quantity: 2, MinStockLevel: 10})
	mustProduct(t, s, Product{ID: "id-c", Name: "Clips", SKU: "C", Quantity: 0, MinStockLevel: 20})
	mustProduct(t, s, Product{ID: "id-d", Name: "Dowels", SKU: "D", Quantity: 30, MinStockLevel: 20})

	rep, err := svc.LowStockItems(context.Background())
	if err != nil {
		t.Fatalf("LowStockItems: %v", err)
	}
	if rep.Count != 3 {
		t.Fatalf("want 3, got %d", rep.Count)
	}
	wantOrder := []string{"Clips", "Anchors", "Bolts"}
	wantDeficit := []int{20, 8, 8}
	for i, it := range rep.Items {
		if it.Name != wantOrder[i] || it.Deficit != wantDeficit[i] {
			t.Errorf("row %d: want %s/%d, got %s/%d", i, wantOrder[i], wantDeficit[i], it.Name, it.Deficit)
		}
	}
}

// =============================================================================
// Analytics
// =============================================================================

func TestAnalytics_EachMetric(t *testing.T) {
	svc, s := newTestService(t)
	c := mustCategory(t, s, "Electronics")
	p := mustProduct(t, s, Product{Name: "Mouse", SKU: "M", CategoryID: c.ID, Quantity: 3, MinStockLevel: 5, UnitPrice: 10})
	mustMovement(t, s, p.ID, MovementOutbound, -6, testNow.Add(-24*time.Hour))
	mustMovement(t, s, p.ID, MovementInbound, 4, testNow.Add(-40*24*time.Hour))
	ctx := context.Background()

	ov, err := svc.Analytics(ctx, AnalyticsParams{MetricType: MetricOverview})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	stats := ov.Data.(DashboardStats)
	if stats.TotalProducts != 1 || stats.LowStockCount != 1 || stats.TotalValue != 30 {
		t.Errorf("overview: %+v", stats)
	}

	br, err := svc.Analytics(ctx, AnalyticsParams{MetricType: MetricCategoryBreakdown})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if rows := br.Data.([]CategoryStat); len(rows) != 1 || rows[0].Category != "Electronics" {
		t.Errorf("breakdown: %+v", rows)
	}

	ms, err := svc.Analytics(ctx, AnalyticsParams{MetricType: MetricMovementSummary})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if ms.PeriodDays != DefaultPeriodDays {
		t.Errorf("period_days: want %d, got %d", DefaultPeriodDays, ms.PeriodDays)
	}
	if totals := ms.Data.(MovementTotals); totals.TotalOutbound != 6 || totals.TotalInbound != 0 {
		t.Errorf("summary within 30 days: %+v", totals)
	}

	ms, _ = svc.Analytics(ctx, AnalyticsParams{MetricType: MetricMovementSummary, PeriodDays: 60})
	if totals := ms.Data.(MovementTotals); totals.TotalInbound != 4 || totals.NetChange != -2 {
		t.Errorf("summary within 60 days: %+v", totals)
	}

	tm, err := svc.Analytics(ctx, AnalyticsParams{MetricType: MetricTopMovers})
	if err != nil {
		t.Fatalf("top movers: %v", err)
	}
	if movers := tm.Data.([]Mover); len(movers) != 1 || movers[0].SKU != "M" || movers[0].TotalVolume != 6 {
		t.Errorf("top movers: %+v", movers)
	}
}

func TestAnalytics_WhenInvalid_ShouldReturnInvalidArgument(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []AnalyticsParams{
		{MetricType: "revenue"},
		{MetricType: MetricOverview, PeriodDays: -1},
		{MetricType: MetricTopMovers, PeriodDays: MaxPeriodDays + 1},
	}
	for _, tt := range tests {
		if _, err := svc.Analytics(context.Background(), tt); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%+v: want ErrInvalidArgument, got %v", tt, err)
		}
	}
}

// =============================================================================
// UpdateThreshold
// =============================================================================

func TestUpdateThreshold_WhenViewer_ShouldDenyAndLeaveThresholdUnchanged(t *testing.T) {
	// Given: a product with threshold 10
	svc, s := newTestService(t)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1", Quantity: 50, MinStockLevel: 10})

	// When: a viewer calls the write directly
	_, err := svc.UpdateThreshold(context.Background(), viewer, ThresholdParams{ProductID: p.ID, NewThreshold: 99, Reason: "test"})

	// Then: permission error, threshold still 10
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	got, _ := s.GetProduct(context.Background(), p.ID)
	if got.MinStockLevel != 10 {
		t.Errorf("threshold changed to %d", got.MinStockLevel)
	}
}

func TestUpdateThreshold_WhenManager_ShouldRoundAndReportPrevious(t *testing.T) {
	// Given: a product with threshold 10 and a logger
	var buf bytes.Buffer
	s := newTestStore(t)
	svc := NewService(s,
		WithClock(func() time.Time { return testNow }),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1", Quantity: 15, MinStockLevel: 10})

	// When: a manager sets 17.6
	res, err := svc.UpdateThreshold(context.Background(), manager, ThresholdParams{ProductID: p.ID, NewThreshold: 17.6, Reason: "  2.6/day x 5d x 1.35  "})

	// Then: stored 18, previous 10, reason echoed, status re-derived
	if err != nil {
		t.Fatalf("UpdateThreshold: %v", err)
	}
	if !res.Success || res.PreviousThreshold != 10 || res.NewThreshold != 18 {
		t.Errorf("result: %+v", res)
	}
	if res.Reason != "2.6/day x 5d x 1.35" {
		t.Errorf("reason: %q", res.Reason)
	}
	if res.Product.MinStockLevel != 18 || res.Product.Status != StatusLowStock {
		t.Errorf("product: %+v", res.Product)
	}
	got, _ := s.GetProduct(context.Background(), p.ID)
	if got.MinStockLevel != 18 {
		t.Errorf("stored threshold: %d", got.MinStockLevel)
	}
	notes, _ := s.UnreadNotifications(context.Background(), "anyone", 10)
	if len(notes) != 1 || notes[0].Type != NotifySystem || !strings.Contains(notes[0].Message, "10 -> 18") {
		t.Errorf("audit notification: %+v", notes)
	}
	if !strings.Contains(buf.String(), "threshold updated") {
		t.Errorf("expected log line, got %q", buf.String())
	}
}

func TestUpdateThreshold_WhenArgumentsBad_ShouldNotWrite(t *testing.T) {
	svc, s := newTestService(t)
	p := mustProduct(t, s, Product{Name: "Paper", SKU: "P1", MinStockLevel: 10})

	tests := []struct {
		name    string
		params  ThresholdParams
		wantErr error
	}{
		{"negative", ThresholdParams{ProductID: p.ID, NewThreshold: -1, Reason: "r"}, ErrInvalidArgument},
		{"blank reason", ThresholdParams{ProductID: p.ID, NewThreshold: 5, Reason: "   "}, ErrInvalidArgument},
		{"no product id", ThresholdParams{NewThreshold: 5, Reason: "r"}, ErrInvalidArgument},
		{"missing product", ThresholdParams{ProductID: "ghost", NewThreshold: 5, Reason: "r"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdateThreshold(context.Background(), manager, tt.params); !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
	got, _ := s.GetProduct(context.Background(), p.ID)
	if got.MinStockLevel != 10 {
		t.Errorf("threshold changed to %d", got.MinStockLevel)
	}
}

// =============================================================================
// ScanLowStock
// =============================================================================

func TestScanLowStock_ShouldNotifyOncePerProduct(t *testing.T) {
	svc, s := newTestService(t)
	mustProduct(t, s, Product{Name: "Low", SKU: "L", Quantity: 1, MinStockLevel: 5})
	mustProduct(t, s, Product{Name: "Fine", SKU: "F", Quantity: 10, MinStockLevel: 5})
	ctx := context.Background()

	n, err := svc.ScanLowStock(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first scan: n=%d err=%v", n, err)
	}
	n, err = svc.ScanLowStock(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second scan should not duplicate: n=%d err=%v", n, err)
	}
	notes, _ := svc.Notifications(ctx, manager, 10)
	if len(notes) != 1 || notes[0].Type != NotifyLowStock {
		t.Fatalf("notifications: %+v", notes)
	}
	if err := svc.MarkRead(ctx, manager, notes[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	n, _ = svc.ScanLowStock(ctx)
	if n != 1 {
		t.Errorf("after read, scan should notify again: n=%d", n)
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		cur      StockStatus
		qty, min int
		want     StockStatus
	}{
		{StatusInStock, 0, 5, StatusOutOfStock},
		{StatusInStock, 5, 5, StatusLowStock},
		{StatusLowStock, 6, 5, StatusInStock},
		{StatusOrdered, 0, 5, StatusOrdered},
		{StatusDiscontinued, 100, 5, StatusDiscontinued},
		{"", 3, 1, StatusInStock},
	}
	for _, tt := range tests {
		if got := DeriveStatus(tt.cur, tt.qty, tt.min); got != tt.want {
			t.Errorf("DeriveStatus(%s,%d,%d): want %s, got %s", tt.cur, tt.qty, tt.min, tt.want, got)
		}
	}
}
