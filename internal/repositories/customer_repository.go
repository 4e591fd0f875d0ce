package repositories

import (
	"context"
	"fmt"
	"time"

	"cafe_pos_backend/internal/models"
)

// CustomerRepository defines the interface for customer and loyalty ledger operations.
type CustomerRepository interface {
	EnsureCustomerByPhone(ctx context.Context, executor SQLExecutor, phone string, name *string) (*models.Customer, error)
	GetCustomerByID(ctx context.Context, executor SQLExecutor, id int64) (*models.Customer, error)
	GetCustomerByIDForUpdate(ctx context.Context, executor SQLExecutor, id int64) (*models.Customer, error)
	GetCustomerByPhone(ctx context.Context, executor SQLExecutor, phone string) (*models.Customer, error)
	UpdateLoyalty(ctx context.Context, executor SQLExecutor, customer *models.Customer) error

	HasEarnTransaction(ctx context.Context, executor SQLExecutor, orderID int64) (bool, error)
	CreateLoyaltyTransaction(ctx context.Context, executor SQLExecutor, txn *models.LoyaltyTransaction) (int64, error)
}

type customerRepository struct{}

// NewCustomerRepository creates a new instance of CustomerRepository.
func NewCustomerRepository() CustomerRepository {
	return &customerRepository{}
}

const customerColumns = `id, name, phone, loyalty_points, membership_level, total_spent, last_visit_at, created_at, updated_at`

func scanCustomer(row scanner) (*models.Customer, error) {
	c := &models.Customer{}
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.LoyaltyPoints, &c.MembershipLevel, &c.TotalSpent,
		&c.LastVisitAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureCustomerByPhone returns the customer owning phone, creating it first
// when missing. Concurrent callers for the same phone converge on one row.
func (r *customerRepository) EnsureCustomerByPhone(ctx context.Context, executor SQLExecutor, phone string, name *string) (*models.Customer, error) {
	query := `INSERT INTO customers (name, phone, loyalty_points, membership_level, total_spent, created_at, updated_at)
	          VALUES ($1, $2, 0, $3, 0, $4, $4)
	          ON CONFLICT (phone) DO NOTHING`
	if _, err := executor.ExecContext(ctx, query, name, phone, models.MembershipBronze, time.Now()); err != nil {
		return nil, wrapDBError(err, "ensuring customer by phone")
	}
	return r.GetCustomerByPhone(ctx, executor, phone)
}

func (r *customerRepository) GetCustomerByID(ctx context.Context, executor SQLExecutor, id int64) (*models.Customer, error) {
	c, err := scanCustomer(executor.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting customer by ID %d", id))
	}
	return c, nil
}

func (r *customerRepository) GetCustomerByIDForUpdate(ctx context.Context, executor SQLExecutor, id int64) (*models.Customer, error) {
	c, err := scanCustomer(executor.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("locking customer ID %d", id))
	}
	return c, nil
}

func (r *customerRepository) GetCustomerByPhone(ctx context.Context, executor SQLExecutor, phone string) (*models.Customer, error) {
	c, err := scanCustomer(executor.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
	if err != nil {
		return nil, wrapDBError(err, "getting customer by phone")
	}
	return c, nil
}

func (r *customerRepository) UpdateLoyalty(ctx context.Context, executor SQLExecutor, customer *models.Customer) error {
	query := `UPDATE customers
	          SET loyalty_points = $1, membership_level = $2, total_spent = $3, last_visit_at = $4, updated_at = $5
	          WHERE id = $6`
	customer.UpdatedAt = time.Now()
	result, err := executor.ExecContext(ctx, query,
		customer.LoyaltyPoints, customer.MembershipLevel, customer.TotalSpent, customer.LastVisitAt,
		customer.UpdatedAt, customer.ID,
	)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("updating loyalty for customer ID %d", customer.ID))
	}
	return expectAffected(result, fmt.Sprintf("customer loyalty update ID %d", customer.ID))
}

// --- Loyalty ledger ---

func (r *customerRepository) HasEarnTransaction(ctx context.Context, executor SQLExecutor, orderID int64) (bool, error) {
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM loyalty_transactions WHERE order_id = $1 AND type = 'EARN')`, orderID,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBError(err, fmt.Sprintf("checking earn transaction for order ID %d", orderID))
	}
	return exists, nil
}

func (r *customerRepository) CreateLoyaltyTransaction(ctx context.Context, executor SQLExecutor, txn *models.LoyaltyTransaction) (int64, error) {
	query := `INSERT INTO loyalty_transactions (customer_id, order_id, type, points, reason, created_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		txn.CustomerID, txn.OrderID, txn.Type, txn.Points, txn.Reason, txn.CreatedBy, txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		return 0, wrapDBError(err, "creating loyalty transaction")
	}
	return txn.ID, nil
}
