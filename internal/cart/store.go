// Package cart holds the client-side shopping cart and keeps it durable.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/storage"
)

const (
	// StorageKey is the key the cart is persisted under.
	StorageKey = "my_woocommerce_cart"

	defaultName = "Unknown Product"
)

// LineItem is one product (and optional variation) with its requested quantity.
// The pair (ProductID, VariationID) is unique within a cart.
type LineItem struct {
	ProductID   domain.Scalar `json:"product_id" yaml:"product_id"`
	Name        string        `json:"name" yaml:"name"`
	Price       domain.Scalar `json:"price" yaml:"price"`
	Image       *string       `json:"image" yaml:"image,omitempty"`
	VariationID domain.Scalar `json:"variation_id" yaml:"variation_id,omitempty"`
	Quantity    int           `json:"quantity" yaml:"quantity"`
}

// View is a consistent snapshot of the cart and its derived totals.
type View struct {
	Items      []LineItem `json:"items" yaml:"items"`
	TotalItems int        `json:"total_items" yaml:"total_items"`
	TotalPrice string     `json:"total_price" yaml:"total_price"`
	IsEmpty    bool       `json:"is_empty" yaml:"is_empty"`
}

// Store is the authoritative cart for one profile. Every mutation is applied
// under a lock and then saved in full to the backing storage before returning.
type Store struct {
	mu      sync.Mutex
	items   []LineItem
	backend storage.Store
	key     string
	logger  *zap.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStorageKey overrides the key the cart is persisted under.
func WithStorageKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// Open constructs a Store and hydrates it from backend. Absent data yields an
// empty cart; unparsable data is logged, purged and also yields an empty cart.
func Open(ctx context.Context, backend storage.Store, opts ...Option) *Store {
	s := &Store{
		items:   []LineItem{},
		backend: backend,
		key:     StorageKey,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []LineItem {
	raw, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []LineItem{}
	}
	if err != nil {
		s.logger.Error("failed to read cart from storage", zap.String("key", s.key), zap.Error(err))
		return []LineItem{}
	}

	var stored []LineItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Warn("discarding unreadable cart", zap.String("key", s.key), zap.Error(err))
		if err := s.backend.Delete(ctx, s.key); err != nil {
			s.logger.Error("failed to purge unreadable cart", zap.String("key", s.key), zap.Error(err))
		}
		return []LineItem{}
	}

	items := make([]LineItem, 0, len(stored))
	dropped := 0
	for _, item := range stored {
		if item.ProductID.IsZero() || item.Quantity <= 0 {
			dropped++
			continue
		}
		item.VariationID = item.VariationID.Normalize()
		if idx := indexOf(items, item.ProductID, item.VariationID); idx >= 0 {
			items[idx].Quantity += item.Quantity
			continue
		}
		items = append(items, item)
	}
	if dropped > 0 {
		s.logger.Warn("dropped invalid stored cart entries", zap.Int("dropped", dropped))
	}
	s.logger.Debug("cart hydrated", zap.Int("items", len(items)))
	return items
}

// save must be called with s.mu held.
func (s *Store) save(ctx context.Context) {
	data, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("failed to encode cart", zap.Error(err))
		return
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		s.logger.Error("failed to persist cart", zap.String("key", s.key), zap.Error(err))
	}
}

func indexOf(items []LineItem, productID, variationID domain.Scalar) int {
	for i, item := range items {
		if item.ProductID == productID && item.VariationID == variationID {
			return i
		}
	}
	return -1
}

func lineItemFrom(product domain.Product) LineItem {
	item := LineItem{
		ProductID:   product.ID,
		Name:        product.Name,
		Price:       product.EffectivePrice(),
		VariationID: product.VariationID.Normalize(),
	}
	if item.Name == "" {
		item.Name = defaultName
	}
	if src := product.FirstImageSrc(); src != "" {
		item.Image = &src
	}
	return item
}

// Mutation is a change to the cart applied under the store lock. Applied
// mutations are saved before the lock is released.
type Mutation func(items []LineItem) ([]LineItem, Outcome)

// AddItem adds quantity units of product, merging with an existing entry for
// the same product and variation.
func AddItem(product domain.Product, quantity int) Mutation {
	return func(items []LineItem) ([]LineItem, Outcome) {
		if product.ID.IsZero() {
			return items, rejected(ReasonInvalidProduct)
		}
		if quantity <= 0 {
			return items, rejected(ReasonInvalidQuantity)
		}
		item := lineItemFrom(product)
		if idx := indexOf(items, item.ProductID, item.VariationID); idx >= 0 {
			items[idx].Quantity += quantity
			return items, applied()
		}
		item.Quantity = quantity
		return append(items, item), applied()
	}
}

// SetQuantity sets the quantity of an existing entry. A non-positive quantity
// removes the entry instead.
func SetQuantity(productID domain.Scalar, quantity int, variationID domain.Scalar) Mutation {
	if quantity <= 0 {
		return RemoveItem(productID, variationID)
	}
	return func(items []LineItem) ([]LineItem, Outcome) {
		idx := indexOf(items, productID, variationID.Normalize())
		if idx < 0 {
			return items, rejected(ReasonNotFound)
		}
		items[idx].Quantity = quantity
		return items, applied()
	}
}

// RemoveItem deletes an entry, keeping the order of the others.
func RemoveItem(productID, variationID domain.Scalar) Mutation {
	return func(items []LineItem) ([]LineItem, Outcome) {
		idx := indexOf(items, productID, variationID.Normalize())
		if idx < 0 {
			return items, rejected(ReasonNotFound)
		}
		return append(items[:idx], items[idx+1:]...), applied()
	}
}

// Clear empties the cart.
func Clear() Mutation {
	return func([]LineItem) ([]LineItem, Outcome) {
		return []LineItem{}, applied()
	}
}

// RemoveOrdered takes the submitted order lines out of the cart. Each line
// lowers the matching entry by its quantity and drops the entry once nothing
// is left, so units added after the order was built stay in the cart.
func RemoveOrdered(lines []domain.OrderLineItem) Mutation {
	return func(items []LineItem) ([]LineItem, Outcome) {
		changed := false
		for _, line := range lines {
			idx := indexOf(items, line.ProductID, line.VariationID.Normalize())
			if idx < 0 || line.Quantity <= 0 {
				continue
			}
			changed = true
			if items[idx].Quantity > line.Quantity {
				items[idx].Quantity -= line.Quantity
				continue
			}
			items = append(items[:idx], items[idx+1:]...)
		}
		if !changed {
			return items, rejected(ReasonNotFound)
		}
		return items, applied()
	}
}

// Apply runs m and returns its outcome together with the view of the state it
// produced. Rejected mutations leave the cart and storage untouched.
func (s *Store) Apply(ctx context.Context, m Mutation) (Outcome, View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := s.applyLocked(ctx, m)
	return outcome, s.viewLocked()
}

func (s *Store) apply(ctx context.Context, m Mutation) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, m)
}

// applyLocked must be called with s.mu held.
func (s *Store) applyLocked(ctx context.Context, m Mutation) Outcome {
	items, outcome := m(s.items)
	if !outcome.Applied {
		return outcome
	}
	s.items = items
	s.save(ctx)
	return outcome
}

// Add adds one unit of product.
func (s *Store) Add(ctx context.Context, product domain.Product) Outcome {
	return s.AddToCart(ctx, product, 1)
}

// AddToCart adds quantity units of product. See AddItem.
func (s *Store) AddToCart(ctx context.Context, product domain.Product, quantity int) Outcome {
	return s.apply(ctx, AddItem(product, quantity))
}

// UpdateQuantity sets the quantity of an existing entry. See SetQuantity.
func (s *Store) UpdateQuantity(ctx context.Context, productID domain.Scalar, quantity int, variationID domain.Scalar) Outcome {
	return s.apply(ctx, SetQuantity(productID, quantity, variationID))
}

// RemoveFromCart deletes an entry. See RemoveItem.
func (s *Store) RemoveFromCart(ctx context.Context, productID, variationID domain.Scalar) Outcome {
	return s.apply(ctx, RemoveItem(productID, variationID))
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) Outcome {
	return s.apply(ctx, Clear())
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// TotalItems is the sum of all quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.items)
}

// TotalPrice is the sum of price times quantity, rounded to two decimals.
func (s *Store) TotalPrice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.items)
}

// IsEmpty reports whether the cart has no entries.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// View returns the items and totals computed from the same state.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Store) viewLocked() View {
	return View{
		Items:      cloneItems(s.items),
		TotalItems: totalItems(s.items),
		TotalPrice: totalPrice(s.items),
		IsEmpty:    len(s.items) == 0,
	}
}

// LineItems returns the cart in order-request form.
func (s *Store) LineItems() []domain.OrderLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OrderLineItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, domain.OrderLineItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			VariationID: item.VariationID,
		})
	}
	return out
}

// Close releases the backing storage.
func (s *Store) Close() error {
	return s.backend.Close()
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		if item.Image != nil {
			src := *item.Image
			item.Image = &src
		}
		out[i] = item
	}
	return out
}

func totalItems(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func totalPrice(items []LineItem) string {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Decimal().Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.StringFixed(2)
}
