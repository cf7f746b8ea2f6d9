package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c *Credentials) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// PostgresOrders is a shared order table partitioned by session id.
type PostgresOrders struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresOrders(cred *Credentials, logger *zap.Logger) (*PostgresOrders, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	logger.Info("connected to postgres", zap.String("host", cred.Host), zap.String("db", cred.DBName))
	return &PostgresOrders{db: db, logger: logger}, nil
}

func (p *PostgresOrders) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(p.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// ForSession returns the OrderStore view of one session's orders.
func (p *PostgresOrders) ForSession(sessionID string) OrderStore {
	return &postgresOrderRepository{db: p.db, sessionID: sessionID}
}

func (p *PostgresOrders) Close() error {
	return p.db.Close()
}

type postgresOrderRepository struct {
	db        *sql.DB
	sessionID string
}

const orderColumns = `tracking_id, user_id, transaction_id, amount, status, items,
	delivery_address, phone_number, email, recorded_at, order_date`

func (r *postgresOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (session_id, ` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		r.sessionID,
		order.TrackingID,
		order.UserID,
		order.TransactionID,
		order.Amount.StringFixed(2),
		string(order.Status),
		itemsJSON,
		order.DeliveryAddress,
		order.PhoneNumber,
		order.Email,
		order.Timestamp,
		order.OrderDate,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *postgresOrderRepository) LoadAll(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE session_id = $1 ORDER BY order_date DESC, seq DESC`

	rows, err := r.db.QueryContext(ctx, query, r.sessionID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *postgresOrderRepository) LoadLatest(ctx context.Context) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE session_id = $1 ORDER BY seq DESC LIMIT 1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, r.sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (r *postgresOrderRepository) Get(ctx context.Context, trackingID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE session_id = $1 AND tracking_id = $2`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, r.sessionID, trackingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (r *postgresOrderRepository) AdvanceStatus(ctx context.Context, trackingID string, status domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE session_id = $1 AND tracking_id = $2 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, query, r.sessionID, trackingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !order.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE session_id = $2 AND tracking_id = $3`,
		string(status), r.sessionID, trackingID)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	order.Status = status
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order     domain.Order
		status    string
		itemsJSON []byte
	)
	err := row.Scan(
		&order.TrackingID,
		&order.UserID,
		&order.TransactionID,
		&order.Amount,
		&status,
		&itemsJSON,
		&order.DeliveryAddress,
		&order.PhoneNumber,
		&order.Email,
		&order.Timestamp,
		&order.OrderDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
