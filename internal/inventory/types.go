package inventory

import (
	"time"

	"inventrack/internal/domain"
)

// StockStatus is the lifecycle state of a product's stock.
type StockStatus string

const (
	StatusInStock      StockStatus = "in_stock"
	StatusLowStock     StockStatus = "low_stock"
	StatusOutOfStock   StockStatus = "out_of_stock"
	StatusOrdered      StockStatus = "ordered"
	StatusDiscontinued StockStatus = "discontinued"
)

// DeriveStatus recomputes a quantity-driven status. Ordered and
// discontinued are set by people and are left alone.
func DeriveStatus(current StockStatus, quantity, minStock int) StockStatus {
	switch current {
	case StatusOrdered, StatusDiscontinued:
		return current
	}
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= minStock:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementInbound    MovementType = "inbound"
	MovementOutbound   MovementType = "outbound"
	MovementAdjustment MovementType = "adjustment"
)

// NotificationType classifies a notification.
type NotificationType string

const (
	NotifyLowStock    NotificationType = "low_stock"
	NotifySystem      NotificationType = "system"
	NotifyStockChange NotificationType = "stock_change"
)

// UncategorizedName labels products without a category.
const UncategorizedName = "Uncategorized"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Description   string      `json:"description,omitempty"`
	CategoryID    string      `json:"category_id,omitempty"`
	CategoryName  string      `json:"category,omitempty"`
	UnitPrice     float64     `json:"unit_price"`
	Quantity      int         `json:"quantity"`
	MinStockLevel int         `json:"min_stock_level"`
	Status        StockStatus `json:"status"`
	CreatedBy     string      `json:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsLowStock reports whether quantity is at or below the threshold.
func (p Product) IsLowStock() bool {
	return p.Quantity <= p.MinStockLevel
}

// Category returns the category name or UncategorizedName.
func (p Product) Category() string {
	if p.CategoryName == "" {
		return UncategorizedName
	}
	return p.CategoryName
}

type StockMovement struct {
	ID             string       `json:"id"`
	ProductID      string       `json:"product_id"`
	QuantityChange int          `json:"quantity_change"`
	MovementType   MovementType `json:"movement_type"`
	Notes          string       `json:"notes,omitempty"`
	CreatedBy      string       `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id,omitempty"` // empty means every user
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Type      NotificationType `json:"type"`
	ProductID string           `json:"product_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type Profile struct {
	ID        string      `json:"id"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DashboardStats mirrors the dashboard header figures.
type DashboardStats struct {
	TotalProducts   int     `json:"total_products"`
	TotalCategories int     `json:"total_categories"`
	TotalValue      float64 `json:"total_value"`
	LowStockCount   int     `json:"low_stock_count"`
	OutOfStockCount int     `json:"out_of_stock_count"`
}

// CategoryStat is one row of the category breakdown.
type CategoryStat struct {
	Category      string  `json:"category"`
	Items         int     `json:"items"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// MovementTotals aggregates movements over a window.
type MovementTotals struct {
	TotalInbound     int `json:"total_inbound"`
	TotalOutbound    int `json:"total_outbound"`
	TotalAdjustments int `json:"total_adjustments"`
	NetChange        int `json:"net_change"`
	TotalMovements   int `json:"total_movements"`
}

// Mover is one product's movement volume over a window.
type Mover struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	TotalVolume int    `json:"total_volume"`
	Movements   int    `json:"movements"`
}
