package tooling

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"inventrack/internal/auth"
	"inventrack/internal/inventory"
	"inventrack/internal/policy"
)

// unmarshalFunc is the JSON unmarshaler used by the inventory tools.
// Package-level so tests can inject a failing unmarshaler.
var unmarshalFunc = json.Unmarshal

func decodeArgs(args json.RawMessage, v any) error {
	if err := unmarshalFunc(normalizeArgs(args), v); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}
	return nil
}

// =============================================================================
// Input contracts
// =============================================================================

type SearchInventoryInput struct {
	Query        string `json:"query,omitempty" jsonschema_description:"Search term: product name, SKU, keyword, or description text (e.g. 'laptop', 'ELEC-001', 'ergonomic'). Omit to list all items matching the other filters."`
	Category     string `json:"category,omitempty" jsonschema_description:"Filter by category name (e.g. 'Electronics', 'Furniture'). Case-insensitive partial match."`
	Status       string `json:"status,omitempty" jsonschema:"enum=in_stock,enum=low_stock,enum=out_of_stock,enum=ordered,enum=discontinued" jsonschema_description:"Filter by stock status"`
	LowStockOnly bool   `json:"low_stock_only,omitempty" jsonschema_description:"If true, only return items where quantity is at or below their min_stock_level threshold"`
}

type GetStockMovementsInput struct {
	ProductID string `json:"product_id" jsonschema:"minLength=1" jsonschema_description:"ID of the product to get movements for"`
	StartDate string `json:"start_date,omitempty" jsonschema_description:"Start date in ISO format (e.g. '2026-01-01'). Defaults to 90 days before the end date."`
	EndDate   string `json:"end_date,omitempty" jsonschema_description:"End date in ISO format (e.g. '2026-02-23'), inclusive. Defaults to now."`
}

type GetLowStockItemsInput struct{}

type GetAnalyticsInput struct {
	MetricType string  `json:"metric_type" jsonschema:"enum=overview,enum=category_breakdown,enum=movement_summary,enum=top_movers" jsonschema_description:"Type of analytics: overview (total products, value, low stock count), category_breakdown (items and value per category), movement_summary (inbound/outbound totals for a period), top_movers (most active products by movement volume)"`
	PeriodDays float64 `json:"period_days,omitempty" jsonschema:"minimum=1,maximum=3650" jsonschema_description:"Number of days to look back for time-based metrics. Fractions are truncated. Default 30."`
}

type UpdateStockThresholdInput struct {
	ProductID    string  `json:"product_id" jsonschema:"minLength=1" jsonschema_description:"ID of the product to update"`
	NewThreshold float64 `json:"new_threshold" jsonschema:"minimum=0" jsonschema_description:"New minimum stock level (reorder point). Must be >= 0. Calculate based on: avg_daily_consumption * lead_time_days * (1 + safety_margin)"`
	Reason       string  `json:"reason" jsonschema:"minLength=1" jsonschema_description:"Detailed explanation of why this threshold was chosen, including the data and methodology used"`
}

// =============================================================================
// Tools
// =============================================================================

// baseTool carries the pieces every inventory tool shares.
type baseTool struct {
	name, description, schema string
	svc                       *inventory.Service
}

func newBase(name, description string, input any, svc *inventory.Service) baseTool {
	return baseTool{name: name, description: description, schema: GenerateSchema(input), svc: svc}
}

func (b baseTool) Name() string        { return b.name }
func (b baseTool) Description() string { return b.description }
func (b baseTool) Definition() string  { return b.schema }

type SearchInventoryTool struct{ baseTool }

func (t *SearchInventoryTool) Call(ctx context.Context, _ auth.Identity, args json.RawMessage) (any, error) {
	var in SearchInventoryInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return t.svc.SearchInventory(ctx, inventory.SearchParams{
		Query:        in.Query,
		Category:     in.Category,
		Status:       inventory.StockStatus(in.Status),
		LowStockOnly: in.LowStockOnly,
	})
}

type GetStockMovementsTool struct{ baseTool }

func (t *GetStockMovementsTool) Call(ctx context.Context, _ auth.Identity, args json.RawMessage) (any, error) {
	var in GetStockMovementsInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return t.svc.StockMovements(ctx, inventory.MovementParams{
		ProductID: in.ProductID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	})
}

type GetLowStockItemsTool struct{ baseTool }

func (t *GetLowStockItemsTool) Call(ctx context.Context, _ auth.Identity, _ json.RawMessage) (any, error) {
	return t.svc.LowStockItems(ctx)
}

type GetAnalyticsTool struct{ baseTool }

func (t *GetAnalyticsTool) Call(ctx context.Context, _ auth.Identity, args json.RawMessage) (any, error) {
	var in GetAnalyticsInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return t.svc.Analytics(ctx, inventory.AnalyticsParams{
		MetricType: in.MetricType,
		PeriodDays: int(math.Trunc(in.PeriodDays)),
	})
}

type UpdateStockThresholdTool struct{ baseTool }

// Call passes the caller through so the service can refuse read-only roles
// even if this tool was somehow offered to them.
func (t *UpdateStockThresholdTool) Call(ctx context.Context, caller auth.Identity, args json.RawMessage) (any, error) {
	var in UpdateStockThresholdInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return t.svc.UpdateThreshold(ctx, caller, inventory.ThresholdParams{
		ProductID:    in.ProductID,
		NewThreshold: in.NewThreshold,
		Reason:       in.Reason,
	})
}

var (
	_ SchemaTool = (*SearchInventoryTool)(nil)
	_ SchemaTool = (*GetStockMovementsTool)(nil)
	_ SchemaTool = (*GetLowStockItemsTool)(nil)
	_ SchemaTool = (*GetAnalyticsTool)(nil)
	_ SchemaTool = (*UpdateStockThresholdTool)(nil)
)

// NewInventoryRegistry returns the full tool catalogue backed by svc.
// Panics if svc is nil or a tool fails to register.
func NewInventoryRegistry(svc *inventory.Service) *ToolRegistry {
	if svc == nil {
		panic("tooling: inventory service must not be nil")
	}
	tools := []SchemaTool{
		&SearchInventoryTool{newBase(policy.ToolSearchInventory,
			"Search inventory items by name, SKU, description, or category. Returns matching products with current stock levels, pricing, and status.",
			SearchInventoryInput{}, svc)},
		&GetStockMovementsTool{newBase(policy.ToolGetStockMovements,
			"Get stock movement history (inbound, outbound, adjustments) for a specific product over a date range. Essential for analyzing consumption rates, supply patterns, and demand trends before recommending stock thresholds.",
			GetStockMovementsInput{}, svc)},
		&GetLowStockItemsTool{newBase(policy.ToolGetLowStockItems,
			"Get all products currently at or below their minimum stock threshold, sorted by urgency (most critical first). Returns product name, SKU, current quantity, threshold, deficit, category, and unit price.",
			GetLowStockItemsInput{}, svc)},
		&GetAnalyticsTool{newBase(policy.ToolGetAnalytics,
			"Get inventory analytics and metrics. Supports various metric types for comprehensive inventory analysis.",
			GetAnalyticsInput{}, svc)},
		&UpdateStockThresholdTool{newBase(policy.ToolUpdateStockThreshold,
			"Update the minimum stock level (reorder point) for a product. IMPORTANT: Always analyze stock movements first using get_stock_movements before recommending a threshold. Include your reasoning in the 'reason' parameter. Requires admin or manager role.",
			UpdateStockThresholdInput{}, svc)},
	}
	reg := NewToolRegistry()
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			panic(fmt.Sprintf("tooling: %v", err))
		}
	}
	return reg
}
