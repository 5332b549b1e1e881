package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create сохраняет заказ и его позиции в одной транзакции.
func (r *orderRepository) Create(order domain.CheckoutOrder) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checkout_orders (
				id, session_id, subtotal, shipping_fee, total,
				delivery_address, city, phone, notes, payment_method, placed_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			order.ID, order.SessionID, order.Subtotal, order.ShippingFee, order.Total,
			order.DeliveryAddress, order.City, order.Phone, order.Notes,
			string(order.PaymentMethod), order.PlacedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderAlreadyExists
			}
			return fmt.Errorf("insert checkout order: %w", err)
		}

		for i, line := range order.Lines {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO checkout_order_lines (
					order_id, position, product_id, name, unit_price, image_ref, description, quantity
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`,
				order.ID, i, line.ProductID, line.Name, line.UnitPrice,
				line.ImageRef, line.Description, line.Quantity,
			); err != nil {
				return fmt.Errorf("insert checkout order line: %w", err)
			}
		}
		return nil
	})
}

const selectOrderColumns = `
	SELECT id, session_id, subtotal, shipping_fee, total,
	       delivery_address, city, phone, notes, payment_method, placed_at
	FROM checkout_orders
`

func (r *orderRepository) Get(id string) (domain.CheckoutOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CheckoutOrder{}, domain.ErrOrderNotFound
		}
		return domain.CheckoutOrder{}, fmt.Errorf("select checkout order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.CheckoutOrder{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListBySession(sessionID string, limit int) ([]domain.CheckoutOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := selectOrderColumns + ` WHERE session_id = $1 ORDER BY placed_at DESC, id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", sessionID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("list checkout orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.CheckoutOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout order rows: %w", err)
	}

	for i := range orders {
		lines, err := r.loadLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.CheckoutOrder, error) {
	var (
		order  domain.CheckoutOrder
		method string
	)
	if err := row.Scan(
		&order.ID, &order.SessionID, &order.Subtotal, &order.ShippingFee, &order.Total,
		&order.DeliveryAddress, &order.City, &order.Phone, &order.Notes, &method, &order.PlacedAt,
	); err != nil {
		return domain.CheckoutOrder{}, err
	}
	order.PaymentMethod = domain.PaymentMethod(method)
	order.PlacedAt = order.PlacedAt.UTC()
	return order, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, image_ref, description, quantity
		FROM checkout_order_lines
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load checkout order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ProductID, &line.Name, &line.UnitPrice,
			&line.ImageRef, &line.Description, &line.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan checkout order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout order lines: %w", err)
	}

	return lines, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
