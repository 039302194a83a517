package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Okprime/MVP-Match-Assessment/models"
	"github.com/Okprime/MVP-Match-Assessment/service"

	"github.com/lib/pq"
)

// SQLSTATE codes the repository translates into domain errors.
const (
	codeNumericOutOfRange    = pq.ErrorCode("22003")
	codeCheckViolation       = pq.ErrorCode("23514")
	codeUniqueViolation      = pq.ErrorCode("23505")
	codeSerializationFailure = pq.ErrorCode("40001")
	codeDeadlockDetected     = pq.ErrorCode("40P01")
	codeLockNotAvailable     = pq.ErrorCode("55P03")
	codeQueryCanceled        = pq.ErrorCode("57014")
)

const (
	userColumns    = "id, username, password, role, deposit, version, created_at, updated_at"
	productColumns = "id, product_name, seller_id, amount_available, cost, version, created_at, updated_at"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) PostgresRepository {
	return PostgresRepository{db: db}
}

// RunInTx runs fn in one database transaction. Any error from fn, or a
// failed commit, rolls back everything fn wrote.
func (r PostgresRepository) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context, tx service.Tx) error,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, postgresTx{tx: tx}); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (r PostgresRepository) GetUserByID(
	ctx context.Context,
	id int,
) (models.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT "+userColumns+" FROM users WHERE id=$1",
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, notFound(err, "user %d", id)
	}
	return u, nil
}

func (r PostgresRepository) GetUserByUsername(
	ctx context.Context,
	username string,
) (models.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT "+userColumns+" FROM users WHERE username=$1",
		username,
	)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, notFound(err, "user %q", username)
	}
	return u, nil
}

func (r PostgresRepository) CreateUser(
	ctx context.Context,
	user models.User,
) (models.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		"INSERT INTO users (username, password, role, deposit) VALUES ($1, $2, $3, $4) RETURNING "+userColumns,
		user.Username, user.Password, user.Role.String(), user.Balance,
	)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, translate(err)
	}
	return created, nil
}

func (r PostgresRepository) GetProductByID(
	ctx context.Context,
	id int,
) (models.Product, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT "+productColumns+" FROM products WHERE id=$1",
		id,
	)
	p, err := scanProduct(row)
	if err != nil {
		return models.Product{}, notFound(err, "product %d", id)
	}
	return p, nil
}

func (r PostgresRepository) ListProducts(
	ctx context.Context,
	offset, limit int,
) ([]models.Product, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+productColumns+`
		 FROM products
		 ORDER BY created_at DESC, id DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return products, nil
}

func (r PostgresRepository) ListUsers(
	ctx context.Context,
	offset, limit int,
) ([]models.User, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+userColumns+`
		 FROM users
		 ORDER BY created_at DESC, id DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return users, nil
}

type postgresTx struct {
	tx *sql.Tx
}

func (t postgresTx) ReadUserForUpdate(
	ctx context.Context,
	id int,
) (models.User, models.Version, error) {
	row := t.tx.QueryRowContext(
		ctx,
		"SELECT "+userColumns+" FROM users WHERE id=$1 FOR UPDATE",
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, 0, notFound(err, "user %d", id)
	}
	return u, u.Version, nil
}

func (t postgresTx) WriteUserIf(
	ctx context.Context,
	version models.Version,
	user models.User,
) (models.User, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`UPDATE users SET username=$1, deposit=$2, version=version+1, updated_at=now()
		 WHERE id=$3 AND version=$4
		 RETURNING `+userColumns,
		user.Username, user.Balance, user.ID, int64(version),
	)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, staleWrite(err, "user %d", user.ID)
	}
	return u, nil
}

func (t postgresTx) ReadProductForUpdate(
	ctx context.Context,
	id int,
) (models.Product, models.Version, error) {
	row := t.tx.QueryRowContext(
		ctx,
		"SELECT "+productColumns+" FROM products WHERE id=$1 FOR UPDATE",
		id,
	)
	p, err := scanProduct(row)
	if err != nil {
		return models.Product{}, 0, notFound(err, "product %d", id)
	}
	return p, p.Version, nil
}

func (t postgresTx) WriteProductIf(
	ctx context.Context,
	version models.Version,
	product models.Product,
) (models.Product, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`UPDATE products SET product_name=$1, amount_available=$2, cost=$3, version=version+1, updated_at=now()
		 WHERE id=$4 AND version=$5
		 RETURNING `+productColumns,
		product.Name, product.Stock, product.Price, product.ID, int64(version),
	)
	p, err := scanProduct(row)
	if err != nil {
		return models.Product{}, staleWrite(err, "product %d", product.ID)
	}
	return p, nil
}

func (t postgresTx) CreateProduct(
	ctx context.Context,
	product models.Product,
) (models.Product, error) {
	row := t.tx.QueryRowContext(
		ctx,
		"INSERT INTO products (product_name, seller_id, amount_available, cost) VALUES ($1, $2, $3, $4) RETURNING "+productColumns,
		product.Name, product.SellerID, product.Stock, product.Price,
	)
	p, err := scanProduct(row)
	if err != nil {
		return models.Product{}, translate(err)
	}
	return p, nil
}

func (t postgresTx) DeleteProductIf(
	ctx context.Context,
	id int,
	version models.Version,
) error {
	res, err := t.tx.ExecContext(
		ctx,
		"DELETE FROM products WHERE id=$1 AND version=$2",
		id, int64(version),
	)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: product %d changed concurrently", models.ErrTransactionConflict, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var (
		u       models.User
		role    string
		version int64
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Password,
		&role,
		&u.Balance,
		&version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}
	if u.Role, err = models.ParseRole(role); err != nil {
		return models.User{}, err
	}
	u.Version = models.Version(version)
	return u, nil
}

func scanProduct(row scanner) (models.Product, error) {
	var (
		p       models.Product
		version int64
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SellerID,
		&p.Stock,
		&p.Price,
		&version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return models.Product{}, err
	}
	p.Version = models.Version(version)
	return p, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return translate(err)
}

// staleWrite reports a guarded UPDATE that matched no row: the version moved
// or the row is gone.
func staleWrite(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s changed concurrently", models.ErrTransactionConflict, fmt.Sprintf(format, args...))
	}
	return translate(err)
}

func translate(err error) error {
	if err == nil || models.IsDomainError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrTransactionConflict, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeNumericOutOfRange, codeCheckViolation:
			return fmt.Errorf("%w: %s", models.ErrInvalidAmount, pqErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", models.ErrConflict, pqErr.Message)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
			return fmt.Errorf("%w: %s", models.ErrTransactionConflict, pqErr.Message)
		}
	}
	return err
}
