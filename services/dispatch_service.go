package services

import (
	"context"
	"errors"
	"time"

	"dispatch-app/config"
	"dispatch-app/models"
	"dispatch-app/types"
)

// InventoryStore is the capability surface the engine needs from the two
// stock ledgers. Implementations must make TryReserve atomic per record:
// the availability check and the decrement happen as one step relative
// to concurrent callers on the same row.
type InventoryStore interface {
	Lookup(ctx context.Context, kind models.ItemKind, id types.SnowflakeID) (*models.InventoryRecord, error)

	// TryReserve decrements available quantity by quantity if enough is
	// on hand, returning the updated record. With ItemKindUnknown the
	// manufacturing ledger is probed first, then bought-out. Returns
	// ErrItemNotFound or *InsufficientStockError on failure.
	TryReserve(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error)

	// Release increments available quantity unconditionally. Returns
	// ErrItemNotFound if the record no longer exists.
	Release(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error)
}

// DispatchStore persists dispatch aggregates.
type DispatchStore interface {
	Create(ctx context.Context, header *models.DispatchHeader) error
	GetByID(ctx context.Context, id types.SnowflakeID) (*models.DispatchHeader, error)
	Save(ctx context.Context, header *models.DispatchHeader) error
	Delete(ctx context.Context, id types.SnowflakeID) error
}

// DispatchService is the reconciliation engine: it keeps the inventory
// ledgers and the dispatch records consistent through create, update and
// delete.
type DispatchService struct {
	inventory  InventoryStore
	dispatches DispatchStore
}

func NewDispatchService(inventory InventoryStore, dispatches DispatchStore) *DispatchService {
	return &DispatchService{inventory: inventory, dispatches: dispatches}
}

type DispatchLineInput struct {
	ItemID   types.SnowflakeID `json:"item_id"`
	ItemType string            `json:"item_type"`
	ItemCode string            `json:"item_code"`
	ItemName string            `json:"item_name"`
	Quantity int               `json:"quantity"`
}

type CreateDispatchInput struct {
	Destination   string
	CustomerName  string
	Address       string
	ContactNumber string
	DispatchDate  time.Time
	DeliveryDate  *time.Time
	TransportMode string
	VehicleNumber string
	DriverName    string
	DriverContact string
	DispatchedBy  string
	Remarks       string
	Items         []DispatchLineInput
}

type UpdateDispatchInput struct {
	Status        *string
	DeliveryDate  *time.Time
	VehicleNumber *string
	DriverName    *string
	DriverContact *string
	Remarks       *string

	// ItemsPresent is set by the caller when the request body carried
	// line-item fields. Always rejected.
	ItemsPresent bool
}

// ReconciliationGap records a reversal that could not be applied because
// the inventory record no longer exists in either ledger.
type ReconciliationGap struct {
	ItemID   types.SnowflakeID `json:"item_id"`
	ItemCode string            `json:"item_code"`
	Quantity int               `json:"quantity"`
}

type DeleteResult struct {
	RestoredItems int                 `json:"restored_items"`
	TotalItems    int                 `json:"total_items"`
	Gaps          []ReconciliationGap `json:"gaps,omitempty"`
}

type reservation struct {
	kind     models.ItemKind
	itemID   types.SnowflakeID
	quantity int
}

// CreateDispatch validates the request, reserves stock line by line and
// persists the dispatch record. The batch is all-or-nothing: any failure
// after the first successful reservation rolls back every reservation
// made so far, in reverse order, before the error is surfaced.
func (s *DispatchService) CreateDispatch(ctx context.Context, in CreateDispatchInput) (*models.DispatchHeader, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	reserved := make([]reservation, 0, len(in.Items))
	details := make([]models.DispatchDetail, 0, len(in.Items))

	for _, line := range in.Items {
		if err := ctx.Err(); err != nil {
			s.rollback(reserved)
			return nil, &PersistenceError{Op: "dispatch creation aborted", Err: err}
		}

		rec, err := s.inventory.TryReserve(ctx, models.ParseItemKind(line.ItemType), line.ItemID, line.Quantity)
		if err != nil {
			s.rollback(reserved)
			return nil, err
		}

		reserved = append(reserved, reservation{kind: rec.Kind, itemID: rec.ID, quantity: line.Quantity})
		// Snapshot code and name from the resolved record, not from the
		// caller, so the stored line can never drift from the ledger.
		details = append(details, models.DispatchDetail{
			ItemID:   rec.ID,
			ItemKind: rec.Kind,
			ItemCode: rec.ItemCode,
			ItemName: rec.ItemName,
			Quantity: line.Quantity,
		})
	}

	header := &models.DispatchHeader{
		Destination:   in.Destination,
		CustomerName:  in.CustomerName,
		Address:       in.Address,
		ContactNumber: in.ContactNumber,
		DispatchDate:  in.DispatchDate,
		DeliveryDate:  in.DeliveryDate,
		TransportMode: in.TransportMode,
		VehicleNumber: in.VehicleNumber,
		DriverName:    in.DriverName,
		DriverContact: in.DriverContact,
		DispatchedBy:  in.DispatchedBy,
		Remarks:       in.Remarks,
		Status:        models.StatusDispatched,
		Items:         details,
	}
	if header.TransportMode == "" {
		header.TransportMode = "Road"
	}
	if header.DispatchedBy == "" {
		header.DispatchedBy = "Admin"
	}

	// Stock must never stay decremented without a persisted dispatch.
	if err := s.dispatches.Create(ctx, header); err != nil {
		s.rollback(reserved)
		return nil, &PersistenceError{Op: "failed to persist dispatch record", Err: err}
	}

	return header, nil
}

// rollback releases reservations in reverse order of acquisition. It runs
// on a fresh context because the request context may already be cancelled.
func (s *DispatchService) rollback(reserved []reservation) {
	ctx := context.Background()
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if _, err := s.inventory.Release(ctx, r.kind, r.itemID, r.quantity); err != nil {
			config.GetLogger().WithField("item_id", r.itemID.String()).
				WithField("quantity", r.quantity).
				Errorf("rollback release failed: %v", err)
		}
	}
}

func validateCreateInput(in CreateDispatchInput) error {
	if len(in.Items) == 0 {
		return NewValidationError("Items array is required")
	}
	if in.Destination == "" || in.DispatchDate.IsZero() {
		return NewValidationError("Destination and dispatch date are required")
	}
	if in.DeliveryDate != nil && in.DeliveryDate.Before(in.DispatchDate) {
		return NewValidationError("Delivery date cannot be before dispatch date")
	}
	for _, line := range in.Items {
		if line.ItemID == 0 || line.Quantity <= 0 {
			return NewValidationError("Each item must have itemId and valid quantity")
		}
	}
	return nil
}

// UpdateDispatch applies a metadata-only change: status, delivery date
// and logistics fields. Line items are immutable and any attempt to
// change them is rejected rather than silently ignored.
func (s *DispatchService) UpdateDispatch(ctx context.Context, id types.SnowflakeID, in UpdateDispatchInput) (*models.DispatchHeader, error) {
	if in.ItemsPresent {
		return nil, ErrLineItemsImmutable
	}
	if in.Status != nil && !models.IsValidDispatchStatus(*in.Status) {
		return nil, NewValidationError("Invalid status: %s", *in.Status)
	}

	header, err := s.dispatches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Status != nil {
		header.Status = *in.Status
	}
	if in.DeliveryDate != nil {
		header.DeliveryDate = in.DeliveryDate
	}
	if in.VehicleNumber != nil {
		header.VehicleNumber = *in.VehicleNumber
	}
	if in.DriverName != nil {
		header.DriverName = *in.DriverName
	}
	if in.DriverContact != nil {
		header.DriverContact = *in.DriverContact
	}
	if in.Remarks != nil {
		header.Remarks = *in.Remarks
	}

	if err := s.dispatches.Save(ctx, header); err != nil {
		return nil, &PersistenceError{Op: "failed to update dispatch record", Err: err}
	}

	return header, nil
}

// DeleteDispatch restores the stock every line consumed and then removes
// the dispatch record. Lines whose inventory record has vanished from
// both ledgers are reported as reconciliation gaps; they do not block the
// deletion, otherwise the dispatch would become permanently undeletable.
func (s *DispatchService) DeleteDispatch(ctx context.Context, id types.SnowflakeID) (*DeleteResult, error) {
	header, err := s.dispatches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{TotalItems: len(header.Items)}

	for _, detail := range header.Items {
		// Kind is persisted on the line; rows written before the kind
		// column existed fall back to probing both ledgers.
		_, err := s.inventory.Release(ctx, detail.ItemKind, detail.ItemID, detail.Quantity)
		if errors.Is(err, ErrItemNotFound) {
			config.GetLogger().WithField("dispatch_id", id.String()).
				WithField("item_id", detail.ItemID.String()).
				WithField("quantity", detail.Quantity).
				Warn("reconciliation gap: inventory record missing, stock not restorable")
			result.Gaps = append(result.Gaps, ReconciliationGap{
				ItemID:   detail.ItemID,
				ItemCode: detail.ItemCode,
				Quantity: detail.Quantity,
			})
			continue
		}
		if err != nil {
			return nil, &PersistenceError{Op: "failed to restore stock", Err: err}
		}
		result.RestoredItems++
	}

	if err := s.dispatches.Delete(ctx, id); err != nil {
		return nil, &PersistenceError{Op: "failed to delete dispatch record", Err: err}
	}

	return result, nil
}
