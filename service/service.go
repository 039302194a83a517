package service

import (
	"context"
	"fmt"

	"github.com/Okprime/MVP-Match-Assessment/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=./mocks/mock_repository.go -package=mocks github.com/Okprime/MVP-Match-Assessment/service Repository,Tx

const tracerName = "github.com/Okprime/MVP-Match-Assessment/service"

// Repository is the persistence collaborator. Reads outside RunInTx take no
// locks; every mutation goes through a Tx.
type Repository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetUserByID(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetProductByID(ctx context.Context, id int) (models.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, error)
}

// Tx is one unit of work. A record read for update stays locked until the
// unit commits or aborts; a write succeeds only against the version it was
// read with and fails with models.ErrTransactionConflict otherwise.
type Tx interface {
	ReadUserForUpdate(ctx context.Context, id int) (models.User, models.Version, error)
	WriteUserIf(ctx context.Context, version models.Version, user models.User) (models.User, error)
	ReadProductForUpdate(ctx context.Context, id int) (models.Product, models.Version, error)
	WriteProductIf(ctx context.Context, version models.Version, product models.Product) (models.Product, error)
	CreateProduct(ctx context.Context, product models.Product) (models.Product, error)
	DeleteProductIf(ctx context.Context, id int, version models.Version) error
}

type Authorizer interface {
	Authorize(p models.Principal, op Operation) error
	AuthorizeOwner(p models.Principal, op Operation, ownerID int) error
}

type AccountLedger interface {
	Get(ctx context.Context, userID int) (models.User, error)
	Deposit(ctx context.Context, tx Tx, userID, coin int) (models.User, error)
	Debit(ctx context.Context, tx Tx, userID, amount int) (models.User, error)
	Reset(ctx context.Context, tx Tx, userID int) (models.User, error)
}

type ProductCatalog interface {
	GetByID(ctx context.Context, productID int) (models.Product, error)
	List(ctx context.Context, offset, limit int) ([]models.Product, error)
	DecrementStock(ctx context.Context, tx Tx, productID, qty int) (models.Product, error)
	Create(ctx context.Context, tx Tx, seller models.Principal, draft ProductDraft) (models.Product, error)
	Update(ctx context.Context, tx Tx, seller models.Principal, productID int, patch ProductPatch) (models.Product, error)
	Delete(ctx context.Context, tx Tx, seller models.Principal, productID int) error
}

type ChangeMaker interface {
	MakeChange(amount int) ([]int, error)
}

// Engine runs the vending operations. Every operation is authorized before
// state is read and mutates state only inside a single repository transaction.
type Engine struct {
	repo    Repository
	gate    Authorizer
	catalog ProductCatalog
	ledger  AccountLedger
	changer ChangeMaker
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewEngine(
	repo Repository,
	gate Authorizer,
	catalog ProductCatalog,
	ledger AccountLedger,
	changer ChangeMaker,
	logger *zap.Logger,
) Engine {
	return Engine{
		repo:    repo,
		gate:    gate,
		catalog: catalog,
		ledger:  ledger,
		changer: changer,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// NewDefaultEngine wires the standard collaborators around repo.
func NewDefaultEngine(repo Repository, logger *zap.Logger) Engine {
	gate := NewGate()
	return NewEngine(repo, gate, NewCatalog(repo, gate), NewLedger(repo), NewGreedyChange(), logger)
}

func (e Engine) Deposit(ctx context.Context, p models.Principal, amount int) (models.User, error) {
	ctx, span := e.tracer.Start(ctx, "engine.deposit", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
		attribute.Int("deposit.amount", amount),
	))
	defer span.End()

	var user models.User
	err := e.gate.Authorize(p, OpDeposit)
	if err == nil {
		err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			user, err = e.ledger.Deposit(ctx, tx, p.ID, amount)
			return err
		})
	}
	e.observe(span, OpDeposit, p, err, zap.Int("amount", amount), zap.Int("balance", user.Balance))
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (e Engine) Buy(
	ctx context.Context,
	p models.Principal,
	productID int,
	qty int,
) (models.PurchaseResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.buy", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
		attribute.Int("product.id", productID),
		attribute.Int("purchase.quantity", qty),
	))
	defer span.End()

	result, err := e.buy(ctx, p, productID, qty)
	e.observe(span, OpBuy, p, err,
		zap.Int("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("total_spent", result.TotalSpent),
	)
	if err != nil {
		return models.PurchaseResult{}, err
	}
	span.SetAttributes(attribute.Int("purchase.total", result.TotalSpent))
	return result, nil
}

func (e Engine) buy(
	ctx context.Context,
	p models.Principal,
	productID int,
	qty int,
) (models.PurchaseResult, error) {
	if err := e.gate.Authorize(p, OpBuy); err != nil {
		return models.PurchaseResult{}, err
	}
	product, err := e.catalog.GetByID(ctx, productID)
	if err != nil {
		return models.PurchaseResult{}, err
	}
	if qty <= 0 {
		return models.PurchaseResult{}, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidAmount, qty)
	}
	if qty > product.Stock {
		return models.PurchaseResult{}, fmt.Errorf(
			"%w: %d available, %d requested",
			models.ErrInsufficientStock, product.Stock, qty,
		)
	}
	if product.Price <= 0 {
		return models.PurchaseResult{}, fmt.Errorf("%w: product %d has no valid cost", models.ErrInvalidAmount, productID)
	}
	// No balance exceeds MaxAmount, so a larger total is unaffordable and
	// checking before the multiplication keeps it from overflowing.
	if qty > models.MaxAmount/product.Price {
		return models.PurchaseResult{}, fmt.Errorf(
			"%w: %d units at %d exceed any balance",
			models.ErrInsufficientFunds, qty, product.Price,
		)
	}
	buyer, err := e.ledger.Get(ctx, p.ID)
	if err != nil {
		return models.PurchaseResult{}, err
	}
	total := product.Price * qty
	if total > buyer.Balance {
		return models.PurchaseResult{}, fmt.Errorf(
			"%w: balance %d, total cost %d",
			models.ErrInsufficientFunds, buyer.Balance, total,
		)
	}

	// Stock and balance are re-checked under lock; a concurrent purchase may
	// have moved them since the reads above.
	var purchased models.Product
	var debited models.User
	err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if purchased, err = e.catalog.DecrementStock(ctx, tx, productID, qty); err != nil {
			return err
		}
		debited, err = e.ledger.Debit(ctx, tx, p.ID, total)
		return err
	})
	if err != nil {
		return models.PurchaseResult{}, err
	}

	// The change is informational: the remaining balance stays deposited.
	change, err := e.changer.MakeChange(debited.Balance)
	if err != nil {
		return models.PurchaseResult{}, err
	}
	return models.PurchaseResult{
		TotalSpent:       total,
		PurchasedProduct: purchased,
		Change:           change,
	}, nil
}

func (e Engine) ResetDeposit(ctx context.Context, p models.Principal) (models.User, error) {
	ctx, span := e.tracer.Start(ctx, "engine.reset_deposit", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
	))
	defer span.End()

	var user models.User
	err := e.gate.Authorize(p, OpResetDeposit)
	if err == nil {
		err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			user, err = e.ledger.Reset(ctx, tx, p.ID)
			return err
		})
	}
	e.observe(span, OpResetDeposit, p, err)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (e Engine) CreateProduct(
	ctx context.Context,
	p models.Principal,
	draft ProductDraft,
) (models.Product, error) {
	ctx, span := e.tracer.Start(ctx, "engine.create_product", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
	))
	defer span.End()

	var product models.Product
	err := e.gate.Authorize(p, OpCreateProduct)
	if err == nil {
		err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			product, err = e.catalog.Create(ctx, tx, p, draft)
			return err
		})
	}
	e.observe(span, OpCreateProduct, p, err, zap.Int("product_id", product.ID))
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}

func (e Engine) UpdateProduct(
	ctx context.Context,
	p models.Principal,
	productID int,
	patch ProductPatch,
) (models.Product, error) {
	ctx, span := e.tracer.Start(ctx, "engine.update_product", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
		attribute.Int("product.id", productID),
	))
	defer span.End()

	var product models.Product
	err := e.gate.Authorize(p, OpUpdateProduct)
	if err == nil {
		err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			product, err = e.catalog.Update(ctx, tx, p, productID, patch)
			return err
		})
	}
	e.observe(span, OpUpdateProduct, p, err, zap.Int("product_id", productID))
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}

func (e Engine) DeleteProduct(ctx context.Context, p models.Principal, productID int) error {
	ctx, span := e.tracer.Start(ctx, "engine.delete_product", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
		attribute.Int("product.id", productID),
	))
	defer span.End()

	err := e.gate.Authorize(p, OpDeleteProduct)
	if err == nil {
		err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return e.catalog.Delete(ctx, tx, p, productID)
		})
	}
	e.observe(span, OpDeleteProduct, p, err, zap.Int("product_id", productID))
	return err
}

func (e Engine) GetProduct(ctx context.Context, productID int) (models.Product, error) {
	return e.catalog.GetByID(ctx, productID)
}

func (e Engine) ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error) {
	return e.catalog.List(ctx, offset, limit)
}

func (e Engine) GetUser(ctx context.Context, userID int) (models.User, error) {
	return e.ledger.Get(ctx, userID)
}

func (e Engine) observe(span trace.Span, op Operation, p models.Principal, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("operation", op.String()),
		zap.Int("user_id", p.ID),
		zap.Stringer("role", p.Role),
	)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		e.logger.Info("operation completed", fields...)
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fields = append(fields, zap.Error(err), zap.Bool("retryable", models.IsRetryable(err)))
	if models.IsDomainError(err) {
		e.logger.Info("operation rejected", fields...)
		return
	}
	e.logger.Error("operation failed", fields...)
}
