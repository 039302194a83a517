package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Okprime/MVP-Match-Assessment/models"
	"github.com/Okprime/MVP-Match-Assessment/service"
)

// MemoryRepository keeps users and products in process memory with the same
// transactional contract as PostgresRepository. Transactions run one at a
// time and their writes become visible only on commit.
type MemoryRepository struct {
	txMu sync.Mutex

	mu            sync.RWMutex
	users         map[int]models.User
	products      map[int]models.Product
	nextUserID    int
	nextProductID int
	now           func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[int]models.User),
		products:      make(map[int]models.Product),
		nextUserID:    1,
		nextProductID: 1,
		now:           time.Now,
	}
}

func (r *MemoryRepository) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context, tx service.Tx) error,
) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransactionConflict, err)
	}
	tx := &memoryTx{
		repo:     r,
		users:    make(map[int]models.User),
		products: make(map[int]models.Product),
		deleted:  make(map[int]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransactionConflict, err)
	}
	tx.commit()
	return nil
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id int) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
	}
	return user, nil
}

func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("%w: user %q", models.ErrNotFound, username)
}

// CreateUser waits for running transactions so that a staged rename and a
// new user can never claim the same username.
func (r *MemoryRepository) CreateUser(_ context.Context, user models.User) (models.User, error) {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return models.User{}, fmt.Errorf("%w: username %q already exists", models.ErrConflict, user.Username)
		}
	}
	now := r.now()
	user.ID = r.nextUserID
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextUserID++
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepository) GetProductByID(_ context.Context, id int) (models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: product %d", models.ErrNotFound, id)
	}
	return product, nil
}

func (r *MemoryRepository) ListProducts(_ context.Context, offset, limit int) ([]models.Product, error) {
	r.mu.RLock()
	all := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, p)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return []models.Product{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepository) ListUsers(_ context.Context, offset, limit int) ([]models.User, error) {
	r.mu.RLock()
	all := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return []models.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type memoryTx struct {
	repo     *MemoryRepository
	users    map[int]models.User
	products map[int]models.Product
	deleted  map[int]bool
}

func (t *memoryTx) ReadUserForUpdate(_ context.Context, id int) (models.User, models.Version, error) {
	user, err := t.user(id)
	if err != nil {
		return models.User{}, 0, err
	}
	return user, user.Version, nil
}

func (t *memoryTx) WriteUserIf(_ context.Context, version models.Version, user models.User) (models.User, error) {
	current, err := t.user(user.ID)
	if err != nil || current.Version != version {
		return models.User{}, fmt.Errorf("%w: user %d changed concurrently", models.ErrTransactionConflict, user.ID)
	}
	if user.Username != current.Username && t.usernameTaken(user.ID, user.Username) {
		return models.User{}, fmt.Errorf("%w: username %q already exists", models.ErrConflict, user.Username)
	}
	current.Username = user.Username
	current.Balance = user.Balance
	current.Version++
	current.UpdatedAt = t.repo.now()
	t.users[current.ID] = current
	return current, nil
}

func (t *memoryTx) ReadProductForUpdate(_ context.Context, id int) (models.Product, models.Version, error) {
	product, err := t.product(id)
	if err != nil {
		return models.Product{}, 0, err
	}
	return product, product.Version, nil
}

func (t *memoryTx) WriteProductIf(
	_ context.Context,
	version models.Version,
	product models.Product,
) (models.Product, error) {
	current, err := t.product(product.ID)
	if err != nil || current.Version != version {
		return models.Product{}, fmt.Errorf("%w: product %d changed concurrently", models.ErrTransactionConflict, product.ID)
	}
	current.Name = product.Name
	current.Stock = product.Stock
	current.Price = product.Price
	current.Version++
	current.UpdatedAt = t.repo.now()
	t.products[current.ID] = current
	return current, nil
}

// CreateProduct reserves the id immediately, so an aborted transaction leaves
// a gap the way a database sequence does.
func (t *memoryTx) CreateProduct(_ context.Context, product models.Product) (models.Product, error) {
	t.repo.mu.Lock()
	product.ID = t.repo.nextProductID
	t.repo.nextProductID++
	t.repo.mu.Unlock()

	now := t.repo.now()
	product.Version = 1
	product.CreatedAt = now
	product.UpdatedAt = now
	t.products[product.ID] = product
	return product, nil
}

func (t *memoryTx) DeleteProductIf(_ context.Context, id int, version models.Version) error {
	current, err := t.product(id)
	if err != nil || current.Version != version {
		return fmt.Errorf("%w: product %d changed concurrently", models.ErrTransactionConflict, id)
	}
	delete(t.products, id)
	t.deleted[id] = true
	return nil
}

func (t *memoryTx) user(id int) (models.User, error) {
	if user, ok := t.users[id]; ok {
		return user, nil
	}
	return t.repo.GetUserByID(context.Background(), id)
}

func (t *memoryTx) usernameTaken(id int, username string) bool {
	for _, u := range t.users {
		if u.ID != id && u.Username == username {
			return true
		}
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for _, u := range t.repo.users {
		if staged, ok := t.users[u.ID]; ok {
			u = staged
		}
		if u.ID != id && u.Username == username {
			return true
		}
	}
	return false
}

func (t *memoryTx) product(id int) (models.Product, error) {
	if t.deleted[id] {
		return models.Product{}, fmt.Errorf("%w: product %d", models.ErrNotFound, id)
	}
	if product, ok := t.products[id]; ok {
		return product, nil
	}
	return t.repo.GetProductByID(context.Background(), id)
}

func (t *memoryTx) commit() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for id, user := range t.users {
		t.repo.users[id] = user
	}
	for id, product := range t.products {
		t.repo.products[id] = product
	}
	for id := range t.deleted {
		delete(t.repo.products, id)
	}
}
