package inventory

import (
	"context"
	"errors"
	"time"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
)

var (
	// ErrNotFound is returned when a product or profile does not exist.
	ErrNotFound = errors.New("inventory: not found")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("inventory: permission denied")
	// ErrSelfRoleChange is returned when a caller tries to change their own role.
	ErrSelfRoleChange = errors.New("inventory: cannot change your own role")
	// ErrInvalidRole is returned for a role outside admin, manager, viewer.
	ErrInvalidRole = errors.New("inventory: invalid role")
	// ErrInvalidArgument is returned for arguments that pass the schema but not the semantics.
	ErrInvalidArgument = errors.New("inventory: invalid argument")
)

// ProductFilter selects products for search. Every filter is applied before Limit.
type ProductFilter struct {
	Query        string      // substring of name, SKU or description, case-insensitive
	Category     string      // substring of category name, case-insensitive
	Status       StockStatus // exact match when non-empty
	LowStockOnly bool        // quantity <= min_stock_level
	Limit        int         // <= 0 means unlimited
}

// Store is the inventory read/write boundary used by the data access functions.
type Store interface {
	SearchProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	// ListMovements returns a product's movements with from <= created_at <= to, oldest first.
	ListMovements(ctx context.Context, productID string, from, to time.Time) ([]StockMovement, error)
	// LowStockProducts returns every product with quantity <= min_stock_level.
	LowStockProducts(ctx context.Context) ([]Product, error)

	DashboardStats(ctx context.Context) (DashboardStats, error)
	CategoryBreakdown(ctx context.Context) ([]CategoryStat, error)
	MovementTotals(ctx context.Context, since time.Time) (MovementTotals, error)
	TopMovers(ctx context.Context, since time.Time, limit int) ([]Mover, error)

	// UpdateThreshold writes min_stock_level for one product and re-derives
	// its quantity-driven status in the same statement.
	UpdateThreshold(ctx context.Context, id string, minStock int, at time.Time) (Product, error)

	AddNotification(ctx context.Context, n Notification) error
	HasUnreadNotification(ctx context.Context, productID string, typ NotificationType) (bool, error)
	UnreadNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

// ProfileStore manages user profiles and their roles.
type ProfileStore interface {
	auth.ProfileLookup

	ListProfiles(ctx context.Context) ([]Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	CreateProfile(ctx context.Context, p Profile, tokenHash string) (Profile, error)
	// SetUserRole changes target's role. Only admins may do this and nobody
	// may change their own role.
	SetUserRole(ctx context.Context, caller auth.Identity, targetID string, role domain.Role) (Profile, error)
	// RotateToken replaces a profile's session token hash.
	RotateToken(ctx context.Context, id, tokenHash string) error
}
