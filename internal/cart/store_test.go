package cart

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/storage"
)

type flakyStore struct {
	*storage.Memory
	setErr  error
	getErr  error
	sets    int
	deleted []string
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Memory: storage.NewMemory()}
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.Memory.Delete(ctx, key)
}

func product(id int64, price string) domain.Product {
	return domain.Product{ID: domain.Number(id), Name: "Product", Price: domain.Text(price)}
}

func TestAddToCartPricePreference(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	store.Add(ctx, domain.Product{ID: domain.Number(1), Price: domain.Text("10.00"), SalePrice: domain.Text("8.00")})
	store.Add(ctx, domain.Product{ID: domain.Number(2), Price: domain.Text("10.00")})
	store.Add(ctx, domain.Product{ID: domain.Number(3)})

	items := store.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []string{"8.00", "10.00", "0"}
	for i, item := range items {
		if item.Price.String() != want[i] {
			t.Fatalf("item %d: expected price %s, got %s", i, want[i], item.Price.String())
		}
	}
	if items[2].Name != "Unknown Product" {
		t.Fatalf("expected placeholder name, got %q", items[2].Name)
	}
}

func TestAddToCartTakesFirstImage(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	store.Add(ctx, domain.Product{ID: domain.Number(1), Images: []domain.Image{{Src: "https://cdn/a.jpg"}, {Src: "https://cdn/b.jpg"}}})
	store.Add(ctx, domain.Product{ID: domain.Number(2)})

	items := store.Items()
	if items[0].Image == nil || *items[0].Image != "https://cdn/a.jpg" {
		t.Fatalf("expected first image, got %v", items[0].Image)
	}
	if items[1].Image != nil {
		t.Fatalf("expected nil image, got %q", *items[1].Image)
	}
}

func TestAddToCartMergesQuantities(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	store.AddToCart(ctx, product(1, "5.00"), 2)
	store.AddToCart(ctx, product(1, "5.00"), 3)

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("expected one entry, got %d", len(items))
	}
	if items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", items[0].Quantity)
	}
}

func TestAddToCartRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	store := Open(ctx, backend)

	tests := []struct {
		name     string
		product  domain.Product
		quantity int
		reason   Reason
	}{
		{name: "missing id", product: domain.Product{Price: domain.Text("1.00")}, quantity: 1, reason: ReasonInvalidProduct},
		{name: "numeric zero id", product: domain.Product{ID: domain.Number(0)}, quantity: 1, reason: ReasonInvalidProduct},
		{name: "zero quantity", product: product(1, "1.00"), quantity: 0, reason: ReasonInvalidQuantity},
		{name: "negative quantity", product: product(1, "1.00"), quantity: -2, reason: ReasonInvalidQuantity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := store.AddToCart(ctx, tc.product, tc.quantity)
			if out.Applied || out.Reason != tc.reason {
				t.Fatalf("expected rejection %s, got %s", tc.reason, out)
			}
		})
	}
	if !store.IsEmpty() {
		t.Fatalf("expected cart to stay empty")
	}
	if backend.sets != 0 {
		t.Fatalf("expected no writes for rejected input, got %d", backend.sets)
	}
}

func TestVariationsAreDistinctEntries(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	base := product(1, "5.00")
	red := product(1, "6.00")
	red.VariationID = domain.Number(11)
	zeroVariation := product(1, "5.00")
	zeroVariation.VariationID = domain.Number(0)

	store.Add(ctx, base)
	store.Add(ctx, red)
	store.Add(ctx, zeroVariation)

	items := store.Items()
	if len(items) != 2 {
		t.Fatalf("expected base and variation entries, got %d", len(items))
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected zero variation to merge into base product, got %d", items[0].Quantity)
	}

	if out := store.UpdateQuantity(ctx, domain.Number(1), 4, domain.Number(11)); !out.Applied {
		t.Fatalf("expected update applied, got %s", out)
	}
	if got := store.Items()[1].Quantity; got != 4 {
		t.Fatalf("expected variation quantity 4, got %d", got)
	}
}

func TestProductIdentityIsStrict(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	store.Add(ctx, product(1, "1.00"))
	store.Add(ctx, domain.Product{ID: domain.Text("1"), Price: domain.Text("1.00")})

	if got := len(store.Items()); got != 2 {
		t.Fatalf("expected numeric and string ids to be distinct, got %d entries", got)
	}
	if out := store.RemoveFromCart(ctx, domain.Text("1"), domain.Scalar{}); !out.Applied {
		t.Fatalf("expected removal of string id, got %s", out)
	}
	if items := store.Items(); len(items) != 1 || items[0].ProductID != domain.Number(1) {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestUpdateQuantitySetsAbsoluteValue(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	store.AddToCart(ctx, product(1, "1.00"), 2)

	if out := store.UpdateQuantity(ctx, domain.Number(1), 7, domain.Scalar{}); !out.Applied {
		t.Fatalf("expected applied, got %s", out)
	}
	if got := store.TotalItems(); got != 7 {
		t.Fatalf("expected quantity 7, got %d", got)
	}

	if out := store.UpdateQuantity(ctx, domain.Number(9), 3, domain.Scalar{}); out.Applied || out.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %s", out)
	}
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	store.AddToCart(ctx, product(1, "1.00"), 2)

	if out := store.UpdateQuantity(ctx, domain.Number(1), 0, domain.Scalar{}); !out.Applied {
		t.Fatalf("expected removal applied, got %s", out)
	}
	if !store.IsEmpty() {
		t.Fatalf("expected empty cart")
	}
	if out := store.UpdateQuantity(ctx, domain.Number(1), -1, domain.Scalar{}); out.Reason != ReasonNotFound {
		t.Fatalf("expected not_found for missing entry, got %s", out)
	}
}

func TestRemoveFromCartKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	for i := int64(1); i <= 4; i++ {
		store.Add(ctx, product(i, "1.00"))
	}

	store.RemoveFromCart(ctx, domain.Number(2), domain.Scalar{})

	var ids []string
	for _, item := range store.Items() {
		ids = append(ids, item.ProductID.String())
	}
	if !reflect.DeepEqual(ids, []string{"1", "3", "4"}) {
		t.Fatalf("unexpected order %v", ids)
	}
	if out := store.RemoveFromCart(ctx, domain.Number(2), domain.Scalar{}); out.Reason != ReasonNotFound {
		t.Fatalf("expected not_found on second removal, got %s", out)
	}
}

func TestClearCartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := Open(ctx, backend)
	store.AddToCart(ctx, product(1, "1.00"), 3)

	store.ClearCart(ctx)
	first := store.View()
	store.ClearCart(ctx)
	second := store.View()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical state, got %+v and %+v", first, second)
	}
	if !second.IsEmpty || second.TotalItems != 0 || second.TotalPrice != "0.00" {
		t.Fatalf("unexpected cleared view %+v", second)
	}
	raw, err := backend.Get(ctx, StorageKey)
	if err != nil || string(raw) != "[]" {
		t.Fatalf("expected empty array persisted, got %s (%v)", raw, err)
	}
}

func TestTotals(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	store.AddToCart(ctx, product(1, "2.50"), 2)
	store.AddToCart(ctx, product(2, "3.00"), 1)

	if got := store.TotalItems(); got != 3 {
		t.Fatalf("expected 3 items, got %d", got)
	}
	if got := store.TotalPrice(); got != "8.00" {
		t.Fatalf("expected 8.00, got %s", got)
	}
}

func TestTotalPriceRoundsAndToleratesBadPrices(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	store.AddToCart(ctx, product(1, "0.335"), 3)
	store.AddToCart(ctx, product(2, "free"), 4)
	store.AddToCart(ctx, domain.Product{ID: domain.Number(3), Price: domain.Number(2)}, 1)

	if got := store.TotalPrice(); got != "3.01" {
		t.Fatalf("expected 3.01, got %s", got)
	}
}

func TestRoundTripThroughStorage(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := Open(ctx, backend)

	variant := domain.Product{
		ID:          domain.Text("sku-9"),
		Name:        "Mug",
		Price:       domain.Number(12),
		VariationID: domain.Number(91),
		Images:      []domain.Image{{Src: "https://cdn/mug.jpg"}},
	}
	store.AddToCart(ctx, product(1, "2.50"), 2)
	store.AddToCart(ctx, variant, 1)
	store.AddToCart(ctx, product(3, "1.00"), 5)
	before := store.Items()

	reloaded := Open(ctx, backend)
	after := reloaded.Items()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("round trip mismatch:\nbefore %+v\nafter  %+v", before, after)
	}
	if after[1].ProductID.IsNumeric() || !after[1].Price.IsNumeric() {
		t.Fatalf("expected representations preserved, got %+v", after[1])
	}
}

func TestPersistedShape(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := Open(ctx, backend)
	store.AddToCart(ctx, domain.Product{ID: domain.Number(1), Name: "Tea", Price: domain.Text("2.50")}, 2)

	raw, err := backend.Get(ctx, StorageKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := `[{"product_id":1,"name":"Tea","price":"2.50","image":null,"variation_id":null,"quantity":2}]`
	if string(raw) != want {
		t.Fatalf("unexpected persisted value:\n got %s\nwant %s", raw, want)
	}
}

func TestOpenPurgesCorruptStorage(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	if err := backend.Memory.Set(ctx, StorageKey, []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := Open(ctx, backend)

	if !store.IsEmpty() {
		t.Fatalf("expected empty cart")
	}
	if len(backend.deleted) != 1 || backend.deleted[0] != StorageKey {
		t.Fatalf("expected corrupt entry purged, got %v", backend.deleted)
	}
	if _, err := backend.Get(ctx, StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected key removed, got %v", err)
	}
}

func TestOpenDropsInvalidEntriesAndMergesDuplicates(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	seed := `[
		{"product_id":1,"name":"A","price":"1.00","image":null,"variation_id":null,"quantity":1},
		{"product_id":null,"name":"B","price":"1.00","image":null,"variation_id":null,"quantity":1},
		{"product_id":2,"name":"C","price":"1.00","image":null,"variation_id":null,"quantity":0},
		{"product_id":1,"name":"A","price":"1.00","image":null,"variation_id":0,"quantity":2}
	]`
	if err := backend.Set(ctx, StorageKey, []byte(seed)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items := Open(ctx, backend).Items()
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("expected one merged entry with quantity 3, got %+v", items)
	}
}

func TestOpenKeepsDataOnReadFailure(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	backend.getErr = errors.New("backend unavailable")

	store := Open(ctx, backend)
	if !store.IsEmpty() {
		t.Fatalf("expected empty cart")
	}
	if len(backend.deleted) != 0 {
		t.Fatalf("expected no purge on read failure")
	}
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	backend.setErr = errors.New("disk full")
	store := Open(ctx, backend)

	if out := store.AddToCart(ctx, product(1, "1.00"), 2); !out.Applied {
		t.Fatalf("expected applied despite write failure, got %s", out)
	}
	if got := store.TotalItems(); got != 2 {
		t.Fatalf("expected in-memory state kept, got %d", got)
	}
}

func TestEveryMutationPersists(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	store := Open(ctx, backend)

	store.AddToCart(ctx, product(1, "1.00"), 1)
	store.UpdateQuantity(ctx, domain.Number(1), 3, domain.Scalar{})
	store.RemoveFromCart(ctx, domain.Number(1), domain.Scalar{})
	store.ClearCart(ctx)

	if backend.sets != 4 {
		t.Fatalf("expected 4 writes, got %d", backend.sets)
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	store.Add(ctx, domain.Product{ID: domain.Number(1), Images: []domain.Image{{Src: "a"}}})

	items := store.Items()
	items[0].Quantity = 99
	*items[0].Image = "b"

	fresh := store.Items()
	if fresh[0].Quantity != 1 || *fresh[0].Image != "a" {
		t.Fatalf("expected internal state untouched, got %+v", fresh[0])
	}
}

func TestLineItemsOrderForm(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	v := product(1, "1.00")
	v.VariationID = domain.Number(5)
	store.AddToCart(ctx, v, 2)

	got := store.LineItems()
	want := []domain.OrderLineItem{{ProductID: domain.Number(1), Quantity: 2, VariationID: domain.Number(5)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected line items %+v", got)
	}
}

func TestConcurrentMutationsKeepIdentityUnique(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := int64(i % 5)
			store.AddToCart(ctx, product(id+1, "1.00"), 1)
			if i%7 == 0 {
				store.UpdateQuantity(ctx, domain.Number(id+1), 2, domain.Scalar{})
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, item := range store.Items() {
		key := item.ProductID.String() + "/" + item.VariationID.String()
		if seen[key] {
			t.Fatalf("duplicate entry for %s", key)
		}
		seen[key] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 distinct entries, got %d", len(seen))
	}
}

func TestRejectedUpdateAndRemoveDoNotWrite(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	store := Open(ctx, backend)

	if out := store.UpdateQuantity(ctx, domain.Number(9), 2, domain.Scalar{}); out.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %s", out)
	}
	if out := store.RemoveFromCart(ctx, domain.Number(9), domain.Scalar{}); out.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %s", out)
	}
	if backend.sets != 0 {
		t.Fatalf("expected no writes, got %d", backend.sets)
	}
}

func TestRemoveOrderedKeepsLaterAdditions(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())
	store.AddToCart(ctx, product(1, "2.00"), 2)
	ordered := store.LineItems()

	store.AddToCart(ctx, product(1, "2.00"), 1)
	store.AddToCart(ctx, product(2, "3.00"), 1)

	out, view := store.Apply(ctx, RemoveOrdered(ordered))
	if !out.Applied {
		t.Fatalf("expected applied, got %s", out)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected both later additions kept, got %+v", view.Items)
	}
	if view.Items[0].ProductID != domain.Number(1) || view.Items[0].Quantity != 1 {
		t.Fatalf("expected one unit of product 1 left, got %+v", view.Items[0])
	}
	if view.Items[1].ProductID != domain.Number(2) || view.TotalPrice != "5.00" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestRemoveOrderedEmptiesUnchangedCart(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyStore()
	store := Open(ctx, backend)
	v := product(1, "1.00")
	v.VariationID = domain.Number(5)
	store.AddToCart(ctx, v, 2)
	store.AddToCart(ctx, product(3, "1.00"), 1)

	out, view := store.Apply(ctx, RemoveOrdered(store.LineItems()))
	if !out.Applied || !view.IsEmpty {
		t.Fatalf("expected empty cart, got %s %+v", out, view)
	}
	if raw, err := backend.Get(ctx, StorageKey); err != nil || string(raw) != "[]" {
		t.Fatalf("expected [] persisted, got %q (%v)", raw, err)
	}

	if out, _ := store.Apply(ctx, RemoveOrdered([]domain.OrderLineItem{{ProductID: domain.Number(1), Quantity: 1}})); out.Reason != ReasonNotFound {
		t.Fatalf("expected not_found once the lines are gone, got %s", out)
	}
}

func TestApplyReturnsViewOfItsOwnState(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, storage.NewMemory())

	out, view := store.Apply(ctx, AddItem(product(1, "4.00"), 2))
	if !out.Applied || view.TotalItems != 2 || view.TotalPrice != "8.00" {
		t.Fatalf("unexpected result %s %+v", out, view)
	}
	out, view = store.Apply(ctx, SetQuantity(domain.Number(7), 1, domain.Scalar{}))
	if out.Reason != ReasonNotFound || view.TotalItems != 2 {
		t.Fatalf("expected rejection with unchanged view, got %s %+v", out, view)
	}
}

func TestStoredNumericIDsMatchCanonically(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	if err := backend.Set(ctx, StorageKey, []byte(`[{"product_id":1.0,"name":"Tea","price":"2.00","image":null,"variation_id":null,"quantity":1}]`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := Open(ctx, backend)

	store.AddToCart(ctx, product(1, "2.00"), 1)
	items := store.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("expected stored 1.0 to merge with 1, got %+v", items)
	}
}
