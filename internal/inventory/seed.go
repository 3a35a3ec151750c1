package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// seedNamespace derives stable IDs for demo rows so re-seeding a fresh
// database yields the same product IDs.
var seedNamespace = uuid.MustParse("6f1c2d0e-8a52-4c1b-9a57-3f0b8c6e2d41")

func seedID(kind, key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+key)).String()
}

type seedProduct struct {
	name, sku, desc, category string
	price                     float64
	qty, min                  int
	dailyOut                  int // typical units shipped per day
}

var seedCategories = []Category{
	{Name: "Electronics", Description: "Computers, peripherals and accessories", Color: "#3b82f6"},
	{Name: "Furniture", Description: "Office desks, chairs and storage", Color: "#a16207"},
	{Name: "Office Supplies", Description: "Paper, pens and consumables", Color: "#16a34a"},
	{Name: "Networking", Description: "Switches, cables and access points", Color: "#9333ea"},
}

var seedProducts = []seedProduct{
	{"Laptop Pro 14", "ELEC-001", "14-inch business laptop, 16GB RAM", "Electronics", 1299.00, 18, 10, 1},
	{"Wireless Mouse", "ELEC-002", "Ergonomic wireless mouse", "Electronics", 24.99, 12, 40, 4},
	{"USB-C Dock", "ELEC-003", "Dual display USB-C docking station", "Electronics", 189.50, 0, 8, 1},
	{"27in Monitor", "ELEC-004", "27-inch 4K IPS monitor", "Electronics", 349.00, 25, 6, 1},
	{"Ergonomic Chair", "FURN-001", "Mesh ergonomic office chair with lumbar support", "Furniture", 429.00, 7, 5, 0},
	{"Standing Desk", "FURN-002", "Electric sit-stand desk, 140x70", "Furniture", 599.00, 3, 4, 0},
	{"Filing Cabinet", "FURN-003", "Three-drawer steel filing cabinet", "Furniture", 159.00, 14, 3, 0},
	{"A4 Copy Paper", "OFF-001", "500-sheet ream, 80gsm", "Office Supplies", 5.49, 220, 150, 12},
	{"Gel Pens (12)", "OFF-002", "Box of twelve black gel pens", "Office Supplies", 8.99, 35, 50, 3},
	{"Sticky Notes", "OFF-003", "Pack of 12 pads, 76x76mm", "Office Supplies", 6.25, 90, 30, 2},
	{"24-Port Switch", "NET-001", "Managed gigabit switch", "Networking", 279.00, 4, 2, 0},
	{"Cat6 Cable 3m", "NET-002", "Patch cable, 3 metres", "Networking", 4.99, 60, 80, 5},
	{"Label Printer", "MISC-001", "Thermal label printer", "", 139.00, 2, 2, 0},
}

// Seed fills an empty database with demo categories, products and 90 days
// of stock movements. It does nothing when products already exist and
// returns the number of products inserted.
func (s *SQLStore) Seed(ctx context.Context, now time.Time) (int, error) {
	n, err := s.CountProducts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	now = now.UTC()
	start := now.Add(-90 * 24 * time.Hour)

	catIDs := make(map[string]string, len(seedCategories))
	for _, c := range seedCategories {
		c.ID = seedID("category", c.Name)
		c.CreatedAt = start
		if _, err := s.CreateCategory(ctx, c); err != nil {
			return 0, fmt.Errorf("inventory: seed: %w", err)
		}
		catIDs[c.Name] = c.ID
	}

	for _, sp := range seedProducts {
		p := Product{
			ID:            seedID("product", sp.sku),
			Name:          sp.name,
			SKU:           sp.sku,
			Description:   sp.desc,
			CategoryID:    catIDs[sp.category],
			UnitPrice:     sp.price,
			Quantity:      sp.qty,
			MinStockLevel: sp.min,
			CreatedBy:     "seed",
			CreatedAt:     start,
			UpdatedAt:     now,
		}
		if _, err := s.CreateProduct(ctx, p); err != nil {
			return 0, fmt.Errorf("inventory: seed: %w", err)
		}
		if err := s.seedMovements(ctx, p.ID, sp, start); err != nil {
			return 0, fmt.Errorf("inventory: seed: %w", err)
		}
	}
	return len(seedProducts), nil
}

// seedMovements writes a weekly restock and daily shipments following a
// fixed pattern, plus one stock-count adjustment per month.
func (s *SQLStore) seedMovements(ctx context.Context, productID string, sp seedProduct, start time.Time) error {
	for day := 0; day < 90; day++ {
		at := start.Add(time.Duration(day)*24*time.Hour + 10*time.Hour)
		if day%7 == 0 {
			qty := sp.dailyOut*7 + sp.min/2 + 1
			if _, err := s.RecordMovement(ctx, StockMovement{
				ID:             seedID("movement", fmt.Sprintf("%s-in-%d", sp.sku, day)),
				ProductID:      productID,
				QuantityChange: qty,
				MovementType:   MovementInbound,
				Notes:          "Weekly restock",
				CreatedBy:      "seed",
				CreatedAt:      at,
			}); err != nil {
				return err
			}
		}
		out := sp.dailyOut
		if day%5 == 0 {
			out += sp.dailyOut / 2
		}
		if out > 0 {
			if _, err := s.RecordMovement(ctx, StockMovement{
				ID:             seedID("movement", fmt.Sprintf("%s-out-%d", sp.sku, day)),
				ProductID:      productID,
				QuantityChange: -out,
				MovementType:   MovementOutbound,
				Notes:          "Order fulfilment",
				CreatedBy:      "seed",
				CreatedAt:      at.Add(4 * time.Hour),
			}); err != nil {
				return err
			}
		}
		if day%30 == 15 {
			if _, err := s.RecordMovement(ctx, StockMovement{
				ID:             seedID("movement", fmt.Sprintf("%s-adj-%d", sp.sku, day)),
				ProductID:      productID,
				QuantityChange: -1,
				MovementType:   MovementAdjustment,
				Notes:          "Cycle count correction",
				CreatedBy:      "seed",
				CreatedAt:      at.Add(6 * time.Hour),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
