package service

import (
	"context"
	"fmt"

	"github.com/Okprime/MVP-Match-Assessment/models"
)

// Ledger owns the rules for changing a buyer's balance. It does not check the
// caller's role: every method expects the gate to have admitted a buyer.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) Ledger {
	return Ledger{repo: repo}
}

func (l Ledger) Get(ctx context.Context, userID int) (models.User, error) {
	return l.repo.GetUserByID(ctx, userID)
}

func (l Ledger) Deposit(ctx context.Context, tx Tx, userID, coin int) (models.User, error) {
	if coin <= 0 {
		return models.User{}, fmt.Errorf("%w: deposit must be positive, got %d", models.ErrInvalidAmount, coin)
	}
	if !models.IsDenomination(coin) {
		return models.User{}, fmt.Errorf(
			"%w: accepted coins are %v, got %d",
			models.ErrInvalidDenomination, models.Denominations, coin,
		)
	}
	return l.apply(ctx, tx, userID, func(balance int) (int, error) {
		return balance + coin, nil
	})
}

func (l Ledger) Debit(ctx context.Context, tx Tx, userID, amount int) (models.User, error) {
	if amount <= 0 {
		return models.User{}, fmt.Errorf("%w: debit must be positive, got %d", models.ErrInvalidAmount, amount)
	}
	return l.apply(ctx, tx, userID, func(balance int) (int, error) {
		if amount > balance {
			return 0, fmt.Errorf("%w: balance %d, required %d", models.ErrInsufficientFunds, balance, amount)
		}
		return balance - amount, nil
	})
}

func (l Ledger) Reset(ctx context.Context, tx Tx, userID int) (models.User, error) {
	return l.apply(ctx, tx, userID, func(int) (int, error) {
		return 0, nil
	})
}

func (l Ledger) apply(
	ctx context.Context,
	tx Tx,
	userID int,
	next func(balance int) (int, error),
) (models.User, error) {
	user, version, err := tx.ReadUserForUpdate(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	balance, err := next(user.Balance)
	if err != nil {
		return models.User{}, err
	}
	if balance > models.MaxAmount {
		return models.User{}, fmt.Errorf(
			"%w: balance cannot exceed %d, got %d",
			models.ErrInvalidAmount, models.MaxAmount, balance,
		)
	}
	if balance < 0 || balance%models.SmallestDenomination != 0 {
		return models.User{}, fmt.Errorf(
			"%w: balance must stay a non-negative multiple of %d, got %d",
			models.ErrInvalidAmount, models.SmallestDenomination, balance,
		)
	}
	user.Balance = balance
	return tx.WriteUserIf(ctx, version, user)
}
