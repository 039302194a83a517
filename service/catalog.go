package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Okprime/MVP-Match-Assessment/models"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type ProductDraft struct {
	Name  string
	Stock int
	Price int
}

// ProductPatch carries a partial product update; nil fields are left as is.
type ProductPatch struct {
	Name  *string
	Stock *int
	Price *int
}

// Catalog owns the rules for changing products. Stock only moves through
// DecrementStock; everything else requires the owning seller.
type Catalog struct {
	repo Repository
	gate Authorizer
}

func NewCatalog(repo Repository, gate Authorizer) Catalog {
	return Catalog{repo: repo, gate: gate}
}

func (c Catalog) GetByID(ctx context.Context, productID int) (models.Product, error) {
	return c.repo.GetProductByID(ctx, productID)
}

func (c Catalog) List(ctx context.Context, offset, limit int) ([]models.Product, error) {
	offset, limit = clampPage(offset, limit)
	return c.repo.ListProducts(ctx, offset, limit)
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return offset, limit
}

func (c Catalog) DecrementStock(ctx context.Context, tx Tx, productID, qty int) (models.Product, error) {
	if qty <= 0 {
		return models.Product{}, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidAmount, qty)
	}
	product, version, err := tx.ReadProductForUpdate(ctx, productID)
	if err != nil {
		return models.Product{}, err
	}
	if qty > product.Stock {
		return models.Product{}, fmt.Errorf(
			"%w: %d available, %d requested",
			models.ErrInsufficientStock, product.Stock, qty,
		)
	}
	product.Stock -= qty
	return tx.WriteProductIf(ctx, version, product)
}

func (c Catalog) Create(
	ctx context.Context,
	tx Tx,
	seller models.Principal,
	draft ProductDraft,
) (models.Product, error) {
	product := models.Product{
		Name:     strings.TrimSpace(draft.Name),
		SellerID: seller.ID,
		Stock:    draft.Stock,
		Price:    draft.Price,
	}
	if err := c.gate.AuthorizeOwner(seller, OpCreateProduct, product.SellerID); err != nil {
		return models.Product{}, err
	}
	if err := validateProduct(product); err != nil {
		return models.Product{}, err
	}
	return tx.CreateProduct(ctx, product)
}

func (c Catalog) Update(
	ctx context.Context,
	tx Tx,
	seller models.Principal,
	productID int,
	patch ProductPatch,
) (models.Product, error) {
	product, version, err := tx.ReadProductForUpdate(ctx, productID)
	if err != nil {
		return models.Product{}, err
	}
	if err := c.gate.AuthorizeOwner(seller, OpUpdateProduct, product.SellerID); err != nil {
		return models.Product{}, err
	}
	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Stock != nil {
		product.Stock = *patch.Stock
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if err := validateProduct(product); err != nil {
		return models.Product{}, err
	}
	return tx.WriteProductIf(ctx, version, product)
}

func (c Catalog) Delete(ctx context.Context, tx Tx, seller models.Principal, productID int) error {
	product, version, err := tx.ReadProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	if err := c.gate.AuthorizeOwner(seller, OpDeleteProduct, product.SellerID); err != nil {
		return err
	}
	return tx.DeleteProductIf(ctx, productID, version)
}

// validateProduct keeps prices on the coin grid so that no purchase can leave
// a balance that change cannot be made for.
func validateProduct(p models.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: product name is required", models.ErrInvalidInput)
	case p.Stock < 0 || p.Stock > models.MaxAmount:
		return fmt.Errorf(
			"%w: stock must be between 0 and %d, got %d",
			models.ErrInvalidAmount, models.MaxAmount, p.Stock,
		)
	case p.Price > models.MaxAmount:
		return fmt.Errorf("%w: cost cannot exceed %d, got %d", models.ErrInvalidAmount, models.MaxAmount, p.Price)
	case p.Price <= 0 || p.Price%models.SmallestDenomination != 0:
		return fmt.Errorf(
			"%w: cost must be a positive multiple of %d, got %d",
			models.ErrInvalidAmount, models.SmallestDenomination, p.Price,
		)
	}
	return nil
}
