package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Repository serves menu lookups and identity from the catalog database. It is read-only for the
// ordering core: prices are resolved per call and never cached.
type Repository struct {
	db *sqlx.DB
}

type menuItemRow struct {
	ID         int64  `db:"id"`
	CanteenID  int64  `db:"canteen_id"`
	Name       string `db:"name"`
	PriceCents int64  `db:"price_cents"`
	Available  bool   `db:"available"`
}

type optionRow struct {
	MenuItemID int64  `db:"menu_item_id"`
	Kind       string `db:"kind"`
	Name       string `db:"name"`
	DeltaCents int64  `db:"price_delta_cents"`
}

type canteenRow struct {
	ID         int64         `db:"id"`
	Name       string        `db:"name"`
	OperatorID sql.NullInt64 `db:"operator_id"`
	IsOpen     bool          `db:"is_open"`
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db.DB, &sqlite.Config{
		MigrationsTable: "catalog_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error) {
	items, err := r.GetMenuItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	item, ok := items[id]
	if !ok {
		return nil, fmt.Errorf("menu item %d: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

// GetMenuItems resolves several items at once. Missing ids are absent from the result.
func (r *Repository) GetMenuItems(ctx context.Context, ids []int64) (map[int64]*domain.MenuItem, error) {
	result := make(map[int64]*domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, canteen_id, name, price_cents, available
		FROM menu_items
		WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build menu items query: %w", err)
	}

	var rows []menuItemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	if err := r.attachOptions(ctx, rows, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) ListMenu(ctx context.Context, canteenID int64) ([]*domain.MenuItem, error) {
	var rows []menuItemRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, canteen_id, name, price_cents, available
		FROM menu_items
		WHERE canteen_id = ?
		ORDER BY id`, canteenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu: %w", err)
	}

	byID := make(map[int64]*domain.MenuItem, len(rows))
	if err := r.attachOptions(ctx, rows, byID); err != nil {
		return nil, err
	}

	menu := make([]*domain.MenuItem, 0, len(rows))
	for _, row := range rows {
		menu = append(menu, byID[row.ID])
	}
	return menu, nil
}

func (r *Repository) attachOptions(ctx context.Context, rows []menuItemRow, into map[int64]*domain.MenuItem) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		into[row.ID] = &domain.MenuItem{
			ID:        row.ID,
			CanteenID: row.CanteenID,
			Name:      row.Name,
			Price:     domain.Money(row.PriceCents),
			Available: row.Available,
		}
		ids = append(ids, row.ID)
	}

	query, args, err := sqlx.In(`
		SELECT menu_item_id, kind, name, price_delta_cents
		FROM menu_item_options
		WHERE menu_item_id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("build options query: %w", err)
	}

	var opts []optionRow
	if err := r.db.SelectContext(ctx, &opts, query, args...); err != nil {
		return fmt.Errorf("failed to query menu options: %w", err)
	}

	for _, o := range opts {
		item := into[o.MenuItemID]
		switch o.Kind {
		case "size":
			if item.Sizes == nil {
				item.Sizes = make(map[string]domain.Money)
			}
			item.Sizes[o.Name] = domain.Money(o.DeltaCents)
		case "extra":
			if item.Extras == nil {
				item.Extras = make(map[string]domain.Money)
			}
			item.Extras[o.Name] = domain.Money(o.DeltaCents)
		}
	}
	return nil
}

func (r *Repository) GetCanteen(ctx context.Context, id int64) (*domain.Canteen, error) {
	var row canteenRow
	err := r.db.GetContext(ctx, &row, `SELECT id, name, operator_id, is_open FROM canteens WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("canteen %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query canteen: %w", err)
	}
	return &domain.Canteen{
		ID:         row.ID,
		Name:       row.Name,
		OperatorID: row.OperatorID.Int64,
		IsOpen:     row.IsOpen,
	}, nil
}

func (r *Repository) ResolveRole(ctx context.Context, userID int64) (domain.Role, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user role: %w", err)
	}
	return domain.Role(role), nil
}

func (r *Repository) OwnsCanteen(ctx context.Context, userID, canteenID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM canteens WHERE id = ? AND operator_id = ?`, canteenID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to query canteen ownership: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
