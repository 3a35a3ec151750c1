package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
	"inventrack/internal/policy"
)

// SQLStore implements Store and ProfileStore on SQLite or libSQL.
// Timestamps are stored as Unix milliseconds.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ Store        = (*SQLStore)(nil)
	_ ProfileStore = (*SQLStore)(nil)
)

// NewSQLStore creates the store and applies the schema.
// Returns an error if the db is nil or if the migration fails.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("inventory: db must not be nil")
	}
	s := &SQLStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("inventory: migrate: %w", err)
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		category_id TEXT REFERENCES categories(id),
		unit_price REAL NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0,
		min_stock_level INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'in_stock',
		created_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products(name)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity_change INTEGER NOT NULL,
		movement_type TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_product_time ON stock_movements(product_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_time ON stock_movements(created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		type TEXT NOT NULL,
		product_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(read, user_id)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'viewer',
		token_hash TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_token ON profiles(token_hash)`,
}

func (s *SQLStore) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// likePattern turns user text into a LIKE pattern matching it as a substring.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

// =============================================================================
// Products
// =============================================================================

const productColumns = `p.id, p.name, p.sku, p.description, COALESCE(p.category_id, ''),
	COALESCE(c.name, ''), p.unit_price, p.quantity, p.min_stock_level, p.status,
	p.created_by, p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (Product, error) {
	var (
		p                Product
		status           string
		created, updated int64
	)
	if err := sc.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.CategoryID,
		&p.CategoryName, &p.UnitPrice, &p.Quantity, &p.MinStockLevel, &status,
		&p.CreatedBy, &created, &updated); err != nil {
		return Product{}, err
	}
	p.Status = StockStatus(status)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

func (s *SQLStore) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SearchProducts applies every filter in SQL so the limit counts matching rows only.
func (s *SQLStore) SearchProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		pat := likePattern(q)
		where = append(where, `(lower(p.name) LIKE ? ESCAPE '\' OR lower(p.sku) LIKE ? ESCAPE '\' OR lower(p.description) LIKE ? ESCAPE '\')`)
		args = append(args, pat, pat, pat)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, `lower(c.name) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(c))
	}
	if f.Status != "" {
		where = append(where, `p.status = ?`)
		args = append(args, string(f.Status))
	}
	if f.LowStockOnly {
		where = append(where, `p.quantity <= p.min_stock_level`)
	}

	query := "SELECT " + productColumns + productFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.name, p.id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	products, err := s.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: search products: %w", err)
	}
	return products, nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (Product, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+productColumns+productFrom+" WHERE p.id = ?", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("inventory: get product: %w", err)
	}
	return p, nil
}

func (s *SQLStore) LowStockProducts(ctx context.Context) ([]Product, error) {
	products, err := s.queryProducts(ctx, "SELECT "+productColumns+productFrom+
		" WHERE p.quantity <= p.min_stock_level"+
		" ORDER BY (p.min_stock_level - p.quantity) DESC, p.name, p.id")
	if err != nil {
		return nil, fmt.Errorf("inventory: low stock products: %w", err)
	}
	return products, nil
}

func (s *SQLStore) UpdateThreshold(ctx context.Context, id string, minStock int, at time.Time) (Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET
			min_stock_level = ?1,
			status = CASE
				WHEN status IN ('ordered', 'discontinued') THEN status
				WHEN quantity <= 0 THEN 'out_of_stock'
				WHEN quantity <= ?1 THEN 'low_stock'
				ELSE 'in_stock'
			END,
			updated_at = ?2
		WHERE id = ?3`, minStock, millis(at), id)
	if err != nil {
		return Product{}, fmt.Errorf("inventory: update threshold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("inventory: update threshold: %w", err)
	}
	if n == 0 {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return s.GetProduct(ctx, id)
}

// CreateCategory inserts a category, assigning an ID when empty.
func (s *SQLStore) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (id, name, description, color, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.Name, c.Description, c.Color, millis(c.CreatedAt))
	if err != nil {
		return Category{}, fmt.Errorf("inventory: create category: %w", err)
	}
	return c, nil
}

// CreateProduct inserts a product, assigning an ID, timestamps and a derived
// status when they are empty.
func (s *SQLStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = DeriveStatus("", p.Quantity, p.MinStockLevel)
	}
	var categoryID any
	if p.CategoryID != "" {
		categoryID = p.CategoryID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, description, category_id, unit_price,
			quantity, min_stock_level, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.SKU, p.Description, categoryID, p.UnitPrice, p.Quantity,
		p.MinStockLevel, string(p.Status), p.CreatedBy, millis(p.CreatedAt), millis(p.UpdatedAt))
	if err != nil {
		return Product{}, fmt.Errorf("inventory: create product: %w", err)
	}
	return p, nil
}

// CountProducts returns the number of products.
func (s *SQLStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("inventory: count products: %w", err)
	}
	return n, nil
}

// =============================================================================
// Movements
// =============================================================================

func (s *SQLStore) ListMovements(ctx context.Context, productID string, from, to time.Time) ([]StockMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, quantity_change, movement_type, notes, created_by, created_at
		FROM stock_movements
		WHERE product_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at, id`, productID, millis(from), millis(to))
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var (
			m       StockMovement
			typ     string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.QuantityChange, &typ, &m.Notes, &m.CreatedBy, &created); err != nil {
			return nil, fmt.Errorf("inventory: list movements: %w", err)
		}
		m.MovementType = MovementType(typ)
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	return out, nil
}

// RecordMovement inserts a movement row. Quantities on the product are not touched.
func (s *SQLStore) RecordMovement(ctx context.Context, m StockMovement) (StockMovement, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, quantity_change, movement_type, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProductID, m.QuantityChange, string(m.MovementType), m.Notes, m.CreatedBy, millis(m.CreatedAt))
	if err != nil {
		return StockMovement{}, fmt.Errorf("inventory: record movement: %w", err)
	}
	return m, nil
}

// =============================================================================
// Aggregates
// =============================================================================

func (s *SQLStore) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var st DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(quantity * unit_price), 0),
			COALESCE(SUM(CASE WHEN quantity <= min_stock_level THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN quantity <= 0 THEN 1 ELSE 0 END), 0)
		FROM products`).Scan(&st.TotalProducts, &st.TotalValue, &st.LowStockCount, &st.OutOfStockCount)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("inventory: dashboard stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&st.TotalCategories); err != nil {
		return DashboardStats{}, fmt.Errorf("inventory: dashboard stats: %w", err)
	}
	return st, nil
}

func (s *SQLStore) CategoryBreakdown(ctx context.Context) ([]CategoryStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(c.name, ''), COUNT(*), COALESCE(SUM(p.quantity), 0),
			COALESCE(SUM(p.quantity * p.unit_price), 0)
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		GROUP BY COALESCE(c.name, '')`)
	if err != nil {
		return nil, fmt.Errorf("inventory: category breakdown: %w", err)
	}
	defer rows.Close()

	var out []CategoryStat
	for rows.Next() {
		var cs CategoryStat
		if err := rows.Scan(&cs.Category, &cs.Items, &cs.TotalQuantity, &cs.TotalValue); err != nil {
			return nil, fmt.Errorf("inventory: category breakdown: %w", err)
		}
		if cs.Category == "" {
			cs.Category = UncategorizedName
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: category breakdown: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *SQLStore) MovementTotals(ctx context.Context, since time.Time) (MovementTotals, error) {
	var t MovementTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN movement_type = 'inbound' THEN quantity_change ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN movement_type = 'outbound' THEN ABS(quantity_change) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN movement_type NOT IN ('inbound', 'outbound') THEN quantity_change ELSE 0 END), 0),
			COUNT(*)
		FROM stock_movements WHERE created_at >= ?`, millis(since)).
		Scan(&t.TotalInbound, &t.TotalOutbound, &t.TotalAdjustments, &t.TotalMovements)
	if err != nil {
		return MovementTotals{}, fmt.Errorf("inventory: movement totals: %w", err)
	}
	t.NetChange = t.TotalInbound - t.TotalOutbound + t.TotalAdjustments
	return t, nil
}

func (s *SQLStore) TopMovers(ctx context.Context, since time.Time, limit int) ([]Mover, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.product_id, COALESCE(p.name, 'Unknown'), COALESCE(p.sku, ''),
			SUM(ABS(m.quantity_change)) AS volume, COUNT(*)
		FROM stock_movements m LEFT JOIN products p ON p.id = m.product_id
		WHERE m.created_at >= ?
		GROUP BY m.product_id, p.name, p.sku
		ORDER BY volume DESC, p.name, m.product_id
		LIMIT ?`, millis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("inventory: top movers: %w", err)
	}
	defer rows.Close()

	var out []Mover
	for rows.Next() {
		var mv Mover
		if err := rows.Scan(&mv.ProductID, &mv.Name, &mv.SKU, &mv.TotalVolume, &mv.Movements); err != nil {
			return nil, fmt.Errorf("inventory: top movers: %w", err)
		}
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: top movers: %w", err)
	}
	return out, nil
}

// =============================================================================
// Notifications
// =============================================================================

func (s *SQLStore) AddNotification(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, read, type, product_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Read, string(n.Type), n.ProductID, millis(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("inventory: add notification: %w", err)
	}
	return nil
}

func (s *SQLStore) HasUnreadNotification(ctx context.Context, productID string, typ NotificationType) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM notifications WHERE product_id = ? AND type = ? AND read = 0)",
		productID, string(typ)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("inventory: unread notification: %w", err)
	}
	return exists, nil
}

// UnreadNotifications returns unread notifications addressed to userID or to everyone, newest first.
func (s *SQLStore) UnreadNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, read, type, product_id, created_at
		FROM notifications
		WHERE read = 0 AND (user_id = '' OR user_id = ?)
		ORDER BY created_at DESC, id
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("inventory: unread notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n       Notification
			typ     string
			created int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &typ, &n.ProductID, &created); err != nil {
			return nil, fmt.Errorf("inventory: unread notifications: %w", err)
		}
		n.Type = NotificationType(typ)
		n.CreatedAt = fromMillis(created)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: unread notifications: %w", err)
	}
	return out, nil
}

func (s *SQLStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ? AND (user_id = '' OR user_id = ?)", id, userID)
	if err != nil {
		return fmt.Errorf("inventory: mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: mark notification read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	return nil
}

// =============================================================================
// Profiles
// =============================================================================

const profileColumns = "id, full_name, email, role, created_at, updated_at"

func scanProfile(sc scanner) (Profile, error) {
	var (
		p                Profile
		role             string
		created, updated int64
	)
	if err := sc.Scan(&p.ID, &p.FullName, &p.Email, &role, &created, &updated); err != nil {
		return Profile{}, err
	}
	p.Role = domain.ParseRole(role)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

func (s *SQLStore) ProfileByTokenHash(ctx context.Context, tokenHash string) (auth.Identity, error) {
	if tokenHash == "" {
		return auth.Identity{}, fmt.Errorf("%w: empty token", ErrNotFound)
	}
	var id auth.Identity
	var role string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, role FROM profiles WHERE token_hash = ?", tokenHash).
		Scan(&id.UserID, &id.Email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, fmt.Errorf("%w: profile for token", ErrNotFound)
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("inventory: profile by token: %w", err)
	}
	id.Role = domain.ParseRole(role)
	return id, nil
}

func (s *SQLStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("inventory: list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory: list profiles: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: list profiles: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetProfile(ctx context.Context, id string) (Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("%w: profile %s", ErrNotFound, id)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("inventory: get profile: %w", err)
	}
	return p, nil
}

func (s *SQLStore) CreateProfile(ctx context.Context, p Profile, tokenHash string) (Profile, error) {
	if strings.TrimSpace(p.Email) == "" {
		return Profile{}, fmt.Errorf("inventory: create profile: email must not be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if !p.Role.Valid() {
		p.Role = domain.RoleViewer
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, email, role, token_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FullName, p.Email, string(p.Role), tokenHash, millis(now), millis(now))
	if err != nil {
		return Profile{}, fmt.Errorf("inventory: create profile: %w", err)
	}
	return p, nil
}

func (s *SQLStore) SetUserRole(ctx context.Context, caller auth.Identity, targetID string, role domain.Role) (Profile, error) {
	if !policy.CanManageUsers(caller.Role) {
		return Profile{}, ErrForbidden
	}
	if targetID == caller.UserID {
		return Profile{}, ErrSelfRoleChange
	}
	if !role.Valid() {
		return Profile{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET role = ?, updated_at = ? WHERE id = ?",
		string(role), millis(s.now()), targetID)
	if err != nil {
		return Profile{}, fmt.Errorf("inventory: set role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Profile{}, fmt.Errorf("inventory: set role: %w", err)
	}
	if n == 0 {
		return Profile{}, fmt.Errorf("%w: profile %s", ErrNotFound, targetID)
	}
	return s.GetProfile(ctx, targetID)
}

func (s *SQLStore) RotateToken(ctx context.Context, id, tokenHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET token_hash = ?, updated_at = ? WHERE id = ?", tokenHash, millis(s.now()), id)
	if err != nil {
		return fmt.Errorf("inventory: rotate token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: rotate token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: profile %s", ErrNotFound, id)
	}
	return nil
}
