package repository_test

import (
	"context"
	"testing"

	"github.com/Okprime/MVP-Match-Assessment/models"
	"github.com/Okprime/MVP-Match-Assessment/repository"
	"github.com/Okprime/MVP-Match-Assessment/service"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_AbortedUnitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	user, err := repo.CreateUser(ctx, models.User{Username: "buyer", Role: models.RoleBuyer})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
		u, version, err := tx.ReadUserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		u.Balance = 50
		if _, err := tx.WriteUserIf(ctx, version, u); err != nil {
			return err
		}
		if _, err := tx.CreateProduct(ctx, models.Product{Name: "cola", SellerID: 9, Stock: 1, Price: 5}); err != nil {
			return err
		}
		return models.ErrInsufficientStock
	})
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Balance)
	require.Equal(t, user.Version, stored.Version)

	products, err := repo.ListProducts(ctx, 0, 10)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestMemoryRepository_WritesSeeOwnUnit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	user, err := repo.CreateUser(ctx, models.User{Username: "buyer", Role: models.RoleBuyer})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
		for i := 0; i < 3; i++ {
			u, version, err := tx.ReadUserForUpdate(ctx, user.ID)
			if err != nil {
				return err
			}
			u.Balance += 10
			if _, err := tx.WriteUserIf(ctx, version, u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 30, stored.Balance)
	require.Equal(t, user.Version+3, stored.Version)
}

func TestMemoryRepository_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	user, err := repo.CreateUser(ctx, models.User{Username: "buyer", Role: models.RoleBuyer})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
		u, version, err := tx.ReadUserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		u.Balance = 5
		if _, err := tx.WriteUserIf(ctx, version, u); err != nil {
			return err
		}
		_, err = tx.WriteUserIf(ctx, version, u)
		return err
	})
	require.ErrorIs(t, err, models.ErrTransactionConflict)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Balance)
}

func TestMemoryRepository_CanceledContextConflicts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := repository.NewMemoryRepository()
	user, err := repo.CreateUser(ctx, models.User{Username: "buyer", Role: models.RoleBuyer})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
		u, version, err := tx.ReadUserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		u.Balance = 100
		_, err = tx.WriteUserIf(ctx, version, u)
		cancel()
		return err
	})
	require.ErrorIs(t, err, models.ErrTransactionConflict)

	stored, err := repo.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Balance)
}

func TestMemoryRepository_DeleteAndRead(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	var created models.Product
	require.NoError(t, repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
		var err error
		created, err = tx.CreateProduct(ctx, models.Product{Name: "cola", SellerID: 1, Stock: 2, Price: 10})
		return err
	}))

	require.NoError(t, repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
		if err := tx.DeleteProductIf(ctx, created.ID, created.Version); err != nil {
			return err
		}
		_, _, err := tx.ReadProductForUpdate(ctx, created.ID)
		require.ErrorIs(t, err, models.ErrNotFound)
		return nil
	}))

	_, err := repo.GetProductByID(ctx, created.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	for _, name := range []string{"cola", "water", "juice"} {
		name := name
		require.NoError(t, repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
			_, err := tx.CreateProduct(ctx, models.Product{Name: name, SellerID: 1, Stock: 1, Price: 5})
			return err
		}))
	}

	products, err := repo.ListProducts(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "juice", products[0].Name)
	require.Equal(t, "water", products[1].Name)

	rest, err := repo.ListProducts(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, "cola", rest[0].Name)

	empty, err := repo.ListProducts(ctx, 5, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMemoryRepository_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	_, err := repo.CreateUser(ctx, models.User{Username: "alice", Role: models.RoleBuyer})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, models.User{Username: "alice", Role: models.RoleSeller})
	require.ErrorIs(t, err, models.ErrConflict)

	found, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, models.RoleBuyer, found.Role)
}

func TestMemoryRepository_RenameRespectsUniqueUsernames(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	alice, err := repo.CreateUser(ctx, models.User{Username: "alice", Role: models.RoleBuyer})
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, models.User{Username: "bob", Role: models.RoleBuyer})
	require.NoError(t, err)

	rename := func(id int, username string) error {
		return repo.RunInTx(ctx, func(ctx context.Context, tx service.Tx) error {
			u, version, err := tx.ReadUserForUpdate(ctx, id)
			if err != nil {
				return err
			}
			u.Username = username
			_, err = tx.WriteUserIf(ctx, version, u)
			return err
		})
	}

	require.ErrorIs(t, rename(bob.ID, "alice"), models.ErrConflict)
	require.NoError(t, rename(alice.ID, "alice"))
	require.NoError(t, rename(alice.ID, "carol"))
	require.NoError(t, rename(bob.ID, "alice"))

	_, err = repo.CreateUser(ctx, models.User{Username: "carol", Role: models.RoleSeller})
	require.ErrorIs(t, err, models.ErrConflict)

	found, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, bob.ID, found.ID)
}

func TestMemoryRepository_ListUsersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := repo.CreateUser(ctx, models.User{Username: name, Role: models.RoleBuyer})
		require.NoError(t, err)
	}

	users, err := repo.ListUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "bob", users[0].Username)
	require.Equal(t, "alice", users[1].Username)
}
