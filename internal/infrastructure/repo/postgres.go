package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"coffee-backend/internal/domain"
)

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		items JSONB NOT NULL,
		subtotal NUMERIC(14,2) NOT NULL,
		tax NUMERIC(14,2) NOT NULL,
		total NUMERIC(14,2) NOT NULL,
		status TEXT NOT NULL,
		order_type TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		momo JSONB,
		payment_details JSONB,
		transactions JSONB NOT NULL DEFAULT '[]',
		delivery_address JSONB,
		notes TEXT,
		loyalty_points BIGINT NOT NULL DEFAULT 0,
		completed_at TIMESTAMPTZ,
		version BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders (customer_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS orders_awaiting_idx ON orders (payment_method, payment_status, created_at);`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC(14,2) NOT NULL,
		sizes JSONB NOT NULL DEFAULT '[]',
		available BOOLEAN NOT NULL DEFAULT TRUE
	);`,
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type PostgresOrderRepo struct {
	db *sql.DB
}

func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

const orderColumns = `order_id,customer_id,items,subtotal,tax,total,status,order_type,payment_method,payment_status,
	momo,payment_details,transactions,delivery_address,notes,loyalty_points,completed_at,version,created_at,updated_at`

type orderDocs struct {
	items, momo, details, txs, address []byte
}

func marshalDocs(o *domain.Order) (orderDocs, error) {
	var d orderDocs
	var err error
	items := o.Items
	if items == nil {
		items = []domain.OrderItem{}
	}
	txs := o.Transactions
	if txs == nil {
		txs = []domain.TransactionRecord{}
	}
	if d.items, err = json.Marshal(items); err != nil {
		return d, err
	}
	if d.txs, err = json.Marshal(txs); err != nil {
		return d, err
	}
	if d.momo, err = json.Marshal(o.MoMo); err != nil {
		return d, err
	}
	if d.details, err = json.Marshal(o.PaymentDetails); err != nil {
		return d, err
	}
	d.address, err = json.Marshal(o.DeliveryAddress)
	return d, err
}

func completedAt(o *domain.Order) sql.NullTime {
	if o.ActualCompletionTime == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *o.ActualCompletionTime, Valid: true}
}

func (r *PostgresOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	d, err := marshalDocs(o)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,1,$18,$19)
		ON CONFLICT (order_id) DO NOTHING`,
		o.OrderID, o.CustomerID, d.items, o.Subtotal, o.Tax, o.Total, string(o.Status), string(o.OrderType),
		string(o.PaymentMethod), string(o.PaymentStatus), d.momo, d.details, d.txs, d.address, o.Notes,
		o.LoyaltyPointsEarned, completedAt(o), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ConflictError("order " + o.OrderID + " already exists")
	}
	o.Version = 1
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	var d orderDocs
	var notes sql.NullString
	var done sql.NullTime
	err := s.Scan(&o.OrderID, &o.CustomerID, &d.items, &o.Subtotal, &o.Tax, &o.Total, (*string)(&o.Status),
		(*string)(&o.OrderType), (*string)(&o.PaymentMethod), (*string)(&o.PaymentStatus),
		&d.momo, &d.details, &d.txs, &d.address, &notes, &o.LoyaltyPointsEarned, &done, &o.Version,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Notes = notes.String
	if done.Valid {
		t := done.Time
		o.ActualCompletionTime = &t
	}
	for _, doc := range []struct {
		raw []byte
		dst any
	}{
		{d.items, &o.Items},
		{d.momo, &o.MoMo},
		{d.details, &o.PaymentDetails},
		{d.txs, &o.Transactions},
		{d.address, &o.DeliveryAddress},
	} {
		if len(doc.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return nil, fmt.Errorf("order %s: %w", o.OrderID, err)
		}
	}
	return &o, nil
}

func (r *PostgresOrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	return o, err
}

// Update writes o only if the row still carries the expected version. Zero
// affected rows means either a lost race or a missing order.
func (r *PostgresOrderRepo) Update(ctx context.Context, o *domain.Order, expected int64) error {
	d, err := marshalDocs(o)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET items=$3,subtotal=$4,tax=$5,total=$6,status=$7,order_type=$8,
		payment_method=$9,payment_status=$10,momo=$11,payment_details=$12,transactions=$13,delivery_address=$14,
		notes=$15,loyalty_points=$16,completed_at=$17,updated_at=$18,version=version+1
		WHERE order_id=$1 AND version=$2`,
		o.OrderID, expected, d.items, o.Subtotal, o.Tax, o.Total, string(o.Status), string(o.OrderType),
		string(o.PaymentMethod), string(o.PaymentStatus), d.momo, d.details, d.txs, d.address, o.Notes,
		o.LoyaltyPointsEarned, completedAt(o), o.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id=$1)`, o.OrderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}
	o.Version = expected + 1
	return nil
}

func (r *PostgresOrderRepo) List(ctx context.Context, customerID string, page, pageSize int) ([]domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE $1='' OR customer_id=$1`, customerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE $1='' OR customer_id=$1
		ORDER BY created_at DESC, order_id DESC LIMIT $2 OFFSET $3`, customerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]domain.Order, 0, pageSize)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (r *PostgresOrderRepo) ListAwaitingPayment(ctx context.Context, method domain.PaymentMethod, before time.Time, limit int) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE payment_method=$1 AND payment_status=$2 AND created_at < $3
			AND COALESCE(momo->>'requestId', '') <> ''
		ORDER BY updated_at ASC, created_at ASC LIMIT $4`, string(method), string(domain.PaymentPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// Put upserts a product; used by the migrate command to seed the menu.
func (c *PostgresCatalog) Put(ctx context.Context, p domain.Product) error {
	sizes := p.Sizes
	if sizes == nil {
		sizes = []domain.SizeOption{}
	}
	raw, err := json.Marshal(sizes)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO products (id,name,price,sizes,available)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name=$2,price=$3,sizes=$4,available=$5`,
		p.ID, p.Name, p.Price, raw, p.Available)
	return err
}

func scanProduct(s scanner) (domain.Product, error) {
	var p domain.Product
	var sizes []byte
	if err := s.Scan(&p.ID, &p.Name, &p.Price, &sizes, &p.Available); err != nil {
		return p, err
	}
	if len(sizes) > 0 {
		if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (c *PostgresCatalog) Product(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(c.db.QueryRowContext(ctx, `SELECT id,name,price,sizes,available FROM products WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.NotFoundError("product " + id)
	}
	return p, err
}

func (c *PostgresCatalog) Products(ctx context.Context) ([]domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id,name,price,sizes,available FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
