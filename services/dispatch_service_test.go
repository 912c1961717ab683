package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dispatch-app/models"
	"dispatch-app/types"
)

// In-memory InventoryStore with the same probe and atomicity semantics
// as the gorm-backed repository.
type memoryInventory struct {
	mu     sync.Mutex
	mfg    map[types.SnowflakeID]*models.InventoryRecord
	bought map[types.SnowflakeID]*models.InventoryRecord

	// onReserve runs after each successful reservation. Used to trigger
	// cancellation mid-batch.
	onReserve func()
}

func newMemoryInventory() *memoryInventory {
	return &memoryInventory{
		mfg:    make(map[types.SnowflakeID]*models.InventoryRecord),
		bought: make(map[types.SnowflakeID]*models.InventoryRecord),
	}
}

func (m *memoryInventory) addManufacturing(id types.SnowflakeID, code, name string, qty int) {
	m.mfg[id] = &models.InventoryRecord{
		ID: id, ItemCode: code, ItemName: name,
		AvailableQuantity: qty, Kind: models.ItemKindManufacturing,
	}
}

func (m *memoryInventory) addBoughtOut(id types.SnowflakeID, code, name string, qty int) {
	m.bought[id] = &models.InventoryRecord{
		ID: id, ItemCode: code, ItemName: name,
		AvailableQuantity: qty, Kind: models.ItemKindBoughtOut,
	}
}

func (m *memoryInventory) table(kind models.ItemKind) map[types.SnowflakeID]*models.InventoryRecord {
	if kind == models.ItemKindManufacturing {
		return m.mfg
	}
	return m.bought
}

func (m *memoryInventory) find(kind models.ItemKind, id types.SnowflakeID) *models.InventoryRecord {
	if kind != models.ItemKindUnknown {
		return m.table(kind)[id]
	}
	if rec, ok := m.mfg[id]; ok {
		return rec
	}
	return m.bought[id]
}

func (m *memoryInventory) Lookup(ctx context.Context, kind models.ItemKind, id types.SnowflakeID) (*models.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.find(kind, id)
	if rec == nil {
		return nil, ErrItemNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *memoryInventory) TryReserve(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error) {
	m.mu.Lock()
	rec := m.find(kind, id)
	if rec == nil {
		m.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if rec.AvailableQuantity < quantity {
		err := &InsufficientStockError{
			ItemCode:  rec.ItemCode,
			Available: rec.AvailableQuantity,
			Requested: quantity,
		}
		m.mu.Unlock()
		return nil, err
	}
	rec.AvailableQuantity -= quantity
	rec.LastUpdated = time.Now()
	copied := *rec
	m.mu.Unlock()

	if m.onReserve != nil {
		m.onReserve()
	}
	return &copied, nil
}

func (m *memoryInventory) Release(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.find(kind, id)
	if rec == nil {
		return nil, ErrItemNotFound
	}
	rec.AvailableQuantity += quantity
	rec.LastUpdated = time.Now()
	copied := *rec
	return &copied, nil
}

func (m *memoryInventory) available(kind models.ItemKind, id types.SnowflakeID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.find(kind, id)
	if rec == nil {
		return -1
	}
	return rec.AvailableQuantity
}

type memoryDispatchStore struct {
	mu         sync.Mutex
	headers    map[types.SnowflakeID]*models.DispatchHeader
	nextID     int64
	failCreate error
}

func newMemoryDispatchStore() *memoryDispatchStore {
	return &memoryDispatchStore{
		headers: make(map[types.SnowflakeID]*models.DispatchHeader),
		nextID:  1,
	}
}

func (m *memoryDispatchStore) Create(ctx context.Context, header *models.DispatchHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCreate != nil {
		return m.failCreate
	}
	if header.ID == 0 {
		header.ID = types.SnowflakeID(m.nextID)
		m.nextID++
	}
	copied := *header
	m.headers[header.ID] = &copied
	return nil
}

func (m *memoryDispatchStore) GetByID(ctx context.Context, id types.SnowflakeID) (*models.DispatchHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	header, ok := m.headers[id]
	if !ok {
		return nil, ErrDispatchNotFound
	}
	copied := *header
	return &copied, nil
}

func (m *memoryDispatchStore) Save(ctx context.Context, header *models.DispatchHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.headers[header.ID]; !ok {
		return ErrDispatchNotFound
	}
	copied := *header
	m.headers[header.ID] = &copied
	return nil
}

func (m *memoryDispatchStore) Delete(ctx context.Context, id types.SnowflakeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.headers[id]; !ok {
		return ErrDispatchNotFound
	}
	delete(m.headers, id)
	return nil
}

func (m *memoryDispatchStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.headers)
}

func validInput(items ...DispatchLineInput) CreateDispatchInput {
	return CreateDispatchInput{
		Destination:  "Chennai Plant",
		DispatchDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		DispatchedBy: "storekeeper",
		Items:        items,
	}
}

func TestCreateDispatch_ReservesBoughtOutStock(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(100, "BO-X", "Bearing", 10)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	header, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 100, ItemType: "bought_out", Quantity: 4},
	))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if got := inv.available(models.ItemKindBoughtOut, 100); got != 6 {
		t.Errorf("expected available 6, got %d", got)
	}
	if header.Status != models.StatusDispatched {
		t.Errorf("expected status %q, got %q", models.StatusDispatched, header.Status)
	}
	if len(header.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(header.Items))
	}
	if header.Items[0].ItemKind != models.ItemKindBoughtOut {
		t.Errorf("expected persisted kind %q, got %q", models.ItemKindBoughtOut, header.Items[0].ItemKind)
	}
	if store.count() != 1 {
		t.Errorf("expected 1 persisted dispatch, got %d", store.count())
	}
}

func TestCreateDispatch_SnapshotsFromLedgerNotCaller(t *testing.T) {
	inv := newMemoryInventory()
	inv.addManufacturing(7, "MFG-7", "Drive Shaft", 10)
	svc := NewDispatchService(inv, newMemoryDispatchStore())

	header, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 7, ItemType: "manufacturing", ItemCode: "WRONG", ItemName: "Wrong Name", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if header.Items[0].ItemCode != "MFG-7" || header.Items[0].ItemName != "Drive Shaft" {
		t.Errorf("snapshot should come from the ledger, got %q / %q",
			header.Items[0].ItemCode, header.Items[0].ItemName)
	}
}

func TestCreateDispatch_InsufficientStock(t *testing.T) {
	inv := newMemoryInventory()
	inv.addManufacturing(200, "MFG-Y", "Gearbox", 5)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	_, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 200, ItemType: "manufacturing", Quantity: 8},
	))

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 5 || stockErr.Requested != 8 {
		t.Errorf("expected available=5 requested=8, got %d/%d", stockErr.Available, stockErr.Requested)
	}
	if got := inv.available(models.ItemKindManufacturing, 200); got != 5 {
		t.Errorf("stock must be unchanged, got %d", got)
	}
	if store.count() != 0 {
		t.Errorf("no dispatch should be persisted, got %d", store.count())
	}
}

func TestCreateDispatch_RollsBackEarlierLines(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	inv.addBoughtOut(2, "BO-B", "Bolt", 3)
	svc := NewDispatchService(inv, newMemoryDispatchStore())

	_, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 4},
		DispatchLineInput{ItemID: 2, ItemType: "bought_out", Quantity: 5},
	))

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got := inv.available(models.ItemKindBoughtOut, 1); got != 10 {
		t.Errorf("first line must be rolled back to 10, got %d", got)
	}
	if got := inv.available(models.ItemKindBoughtOut, 2); got != 3 {
		t.Errorf("second item must be unchanged at 3, got %d", got)
	}
}

func TestCreateDispatch_UnknownItem(t *testing.T) {
	inv := newMemoryInventory()
	svc := NewDispatchService(inv, newMemoryDispatchStore())

	_, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 999, Quantity: 1},
	))
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestCreateDispatch_Validation(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	svc := NewDispatchService(inv, newMemoryDispatchStore())

	early := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input CreateDispatchInput
	}{
		{"empty items", CreateDispatchInput{Destination: "X", DispatchDate: time.Now()}},
		{"missing destination", CreateDispatchInput{
			DispatchDate: time.Now(),
			Items:        []DispatchLineInput{{ItemID: 1, Quantity: 1}},
		}},
		{"missing dispatch date", CreateDispatchInput{
			Destination: "X",
			Items:       []DispatchLineInput{{ItemID: 1, Quantity: 1}},
		}},
		{"zero quantity", validInput(DispatchLineInput{ItemID: 1, Quantity: 0})},
		{"negative quantity", validInput(DispatchLineInput{ItemID: 1, Quantity: -3})},
		{"missing item id", validInput(DispatchLineInput{Quantity: 2})},
		{"delivery before dispatch", func() CreateDispatchInput {
			in := validInput(DispatchLineInput{ItemID: 1, Quantity: 1})
			in.DeliveryDate = &early
			return in
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateDispatch(context.Background(), tc.input)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if got := inv.available(models.ItemKindBoughtOut, 1); got != 10 {
				t.Errorf("stock must be untouched, got %d", got)
			}
		})
	}
}

func TestCreateDispatch_PersistFailureReleasesStock(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	inv.addManufacturing(2, "MFG-B", "Shaft", 7)
	store := newMemoryDispatchStore()
	store.failCreate = fmt.Errorf("connection reset")
	svc := NewDispatchService(inv, store)

	_, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 4},
		DispatchLineInput{ItemID: 2, ItemType: "manufacturing", Quantity: 3},
	))

	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if got := inv.available(models.ItemKindBoughtOut, 1); got != 10 {
		t.Errorf("bought-out stock must be restored to 10, got %d", got)
	}
	if got := inv.available(models.ItemKindManufacturing, 2); got != 7 {
		t.Errorf("manufacturing stock must be restored to 7, got %d", got)
	}
}

func TestCreateDispatch_CancellationRollsBack(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	inv.addBoughtOut(2, "BO-B", "Bolt", 10)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	ctx, cancel := context.WithCancel(context.Background())
	// Client disconnects after the first line is reserved.
	inv.onReserve = func() { cancel() }

	_, err := svc.CreateDispatch(ctx, validInput(
		DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 4},
		DispatchLineInput{ItemID: 2, ItemType: "bought_out", Quantity: 4},
	))
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if got := inv.available(models.ItemKindBoughtOut, 1); got != 10 {
		t.Errorf("reserved stock must be rolled back, got %d", got)
	}
	if got := inv.available(models.ItemKindBoughtOut, 2); got != 10 {
		t.Errorf("second item must be unchanged, got %d", got)
	}
	if store.count() != 0 {
		t.Errorf("no dispatch should be persisted, got %d", store.count())
	}
}

func TestCreateDispatch_KindProbingPrefersManufacturing(t *testing.T) {
	inv := newMemoryInventory()
	// Same id in both ledgers: probing must hit manufacturing first.
	inv.addManufacturing(5, "MFG-5", "Shaft", 10)
	inv.addBoughtOut(5, "BO-5", "Bolt", 10)
	svc := NewDispatchService(inv, newMemoryDispatchStore())

	header, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 5, Quantity: 2},
	))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if header.Items[0].ItemKind != models.ItemKindManufacturing {
		t.Errorf("expected manufacturing kind, got %q", header.Items[0].ItemKind)
	}
	if got := inv.available(models.ItemKindManufacturing, 5); got != 8 {
		t.Errorf("manufacturing stock should be 8, got %d", got)
	}
	if got := inv.available(models.ItemKindBoughtOut, 5); got != 10 {
		t.Errorf("bought-out stock must be untouched, got %d", got)
	}
}

func TestUpdateDispatch_MetadataOnly(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	header, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 2},
	))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	status := models.StatusDelivered
	vehicle := "KA-01-AB-1234"
	updated, err := svc.UpdateDispatch(context.Background(), header.ID, UpdateDispatchInput{
		Status:        &status,
		VehicleNumber: &vehicle,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Status != models.StatusDelivered {
		t.Errorf("expected status %q, got %q", models.StatusDelivered, updated.Status)
	}
	if updated.VehicleNumber != vehicle {
		t.Errorf("expected vehicle %q, got %q", vehicle, updated.VehicleNumber)
	}
	if updated.Destination != header.Destination {
		t.Errorf("untouched fields must survive, destination became %q", updated.Destination)
	}
	if got := inv.available(models.ItemKindBoughtOut, 1); got != 8 {
		t.Errorf("update must never move stock, got %d", got)
	}
}

func TestUpdateDispatch_RejectsLineItemChanges(t *testing.T) {
	svc := NewDispatchService(newMemoryInventory(), newMemoryDispatchStore())

	_, err := svc.UpdateDispatch(context.Background(), 1, UpdateDispatchInput{ItemsPresent: true})
	if !errors.Is(err, ErrLineItemsImmutable) {
		t.Fatalf("expected ErrLineItemsImmutable, got %v", err)
	}
}

func TestUpdateDispatch_InvalidStatus(t *testing.T) {
	svc := NewDispatchService(newMemoryInventory(), newMemoryDispatchStore())

	bad := "Teleported"
	_, err := svc.UpdateDispatch(context.Background(), 1, UpdateDispatchInput{Status: &bad})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateDispatch_NotFound(t *testing.T) {
	svc := NewDispatchService(newMemoryInventory(), newMemoryDispatchStore())

	_, err := svc.UpdateDispatch(context.Background(), 42, UpdateDispatchInput{})
	if !errors.Is(err, ErrDispatchNotFound) {
		t.Fatalf("expected ErrDispatchNotFound, got %v", err)
	}
}

func TestDeleteDispatch_RestoresStock(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(100, "BO-X", "Bearing", 10)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	header, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 100, ItemType: "bought_out", Quantity: 4},
	))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := inv.available(models.ItemKindBoughtOut, 100); got != 6 {
		t.Fatalf("expected 6 after create, got %d", got)
	}

	result, err := svc.DeleteDispatch(context.Background(), header.ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if result.RestoredItems != 1 || result.TotalItems != 1 {
		t.Errorf("expected 1/1 restored, got %d/%d", result.RestoredItems, result.TotalItems)
	}
	if got := inv.available(models.ItemKindBoughtOut, 100); got != 10 {
		t.Errorf("stock must return to 10, got %d", got)
	}
	if store.count() != 0 {
		t.Errorf("dispatch record must be removed, got %d", store.count())
	}
}

func TestDeleteDispatch_ReconciliationGap(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	inv.addManufacturing(2, "MFG-B", "Shaft", 10)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	header, err := svc.CreateDispatch(context.Background(), validInput(
		DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 3},
		DispatchLineInput{ItemID: 2, ItemType: "manufacturing", Quantity: 2},
	))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Item 2 is removed from its ledger before the dispatch is deleted.
	inv.mu.Lock()
	delete(inv.mfg, 2)
	inv.mu.Unlock()

	result, err := svc.DeleteDispatch(context.Background(), header.ID)
	if err != nil {
		t.Fatalf("delete must still proceed, got error: %v", err)
	}

	if result.RestoredItems != 1 || result.TotalItems != 2 {
		t.Errorf("expected 1/2 restored, got %d/%d", result.RestoredItems, result.TotalItems)
	}
	if len(result.Gaps) != 1 || result.Gaps[0].ItemID != 2 || result.Gaps[0].Quantity != 2 {
		t.Errorf("expected one gap for item 2 qty 2, got %+v", result.Gaps)
	}
	if got := inv.available(models.ItemKindBoughtOut, 1); got != 10 {
		t.Errorf("restorable line must be released, got %d", got)
	}
	if store.count() != 0 {
		t.Errorf("dispatch record must be removed despite the gap, got %d", store.count())
	}
}

func TestDeleteDispatch_NotFound(t *testing.T) {
	svc := NewDispatchService(newMemoryInventory(), newMemoryDispatchStore())

	_, err := svc.DeleteDispatch(context.Background(), 42)
	if !errors.Is(err, ErrDispatchNotFound) {
		t.Fatalf("expected ErrDispatchNotFound, got %v", err)
	}
}

func TestCreateDispatch_ConcurrentReservations(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 10)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateDispatch(context.Background(), validInput(
				DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 6},
			))
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			var stockErr *InsufficientStockError
			if !errors.As(err, &stockErr) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("exactly one request must fail, got %d failures", failures)
	}
	if got := inv.available(models.ItemKindBoughtOut, 1); got != 4 {
		t.Errorf("final stock must be 4, got %d", got)
	}
	if store.count() != 1 {
		t.Errorf("exactly one dispatch must be persisted, got %d", store.count())
	}
}

// Many concurrent creates and deletes must conserve stock: everything
// reserved is eventually released, and availability never goes negative.
func TestConservationUnderConcurrentLifecycle(t *testing.T) {
	inv := newMemoryInventory()
	inv.addBoughtOut(1, "BO-A", "Seal", 50)
	store := newMemoryDispatchStore()
	svc := NewDispatchService(inv, store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			header, err := svc.CreateDispatch(context.Background(), validInput(
				DispatchLineInput{ItemID: 1, ItemType: "bought_out", Quantity: 3},
			))
			if err != nil {
				return
			}
			if _, err := svc.DeleteDispatch(context.Background(), header.ID); err != nil {
				t.Errorf("delete failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := inv.available(models.ItemKindBoughtOut, 1); got != 50 {
		t.Errorf("stock must net back to 50, got %d", got)
	}
	if store.count() != 0 {
		t.Errorf("all dispatches must be deleted, got %d", store.count())
	}
}
