package repositories

import (
	"context"
	"errors"
	"time"

	"dispatch-app/models"
	"dispatch-app/services"
	"dispatch-app/types"

	"gorm.io/gorm"
)

// InventoryRepository implements services.InventoryStore over the two
// stock tables. Reservations are a single conditional UPDATE so the
// availability check and the decrement cannot interleave with concurrent
// requests on the same row.
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Lookup(ctx context.Context, kind models.ItemKind, id types.SnowflakeID) (*models.InventoryRecord, error) {
	switch kind {
	case models.ItemKindManufacturing:
		return r.lookupManufacturing(ctx, id)
	case models.ItemKindBoughtOut:
		return r.lookupBoughtOut(ctx, id)
	default:
		// Manufacturing ledger first, then bought-out.
		rec, err := r.lookupManufacturing(ctx, id)
		if errors.Is(err, services.ErrItemNotFound) {
			return r.lookupBoughtOut(ctx, id)
		}
		return rec, err
	}
}

func (r *InventoryRepository) lookupManufacturing(ctx context.Context, id types.SnowflakeID) (*models.InventoryRecord, error) {
	var item models.ManufacturingItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrItemNotFound
		}
		return nil, &services.PersistenceError{Op: "failed to read manufacturing item", Err: err}
	}
	return item.Record(), nil
}

func (r *InventoryRepository) lookupBoughtOut(ctx context.Context, id types.SnowflakeID) (*models.InventoryRecord, error) {
	var item models.BoughtOutItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrItemNotFound
		}
		return nil, &services.PersistenceError{Op: "failed to read bought-out item", Err: err}
	}
	return item.Record(), nil
}

func (r *InventoryRepository) TryReserve(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error) {
	switch kind {
	case models.ItemKindManufacturing:
		return r.reserve(ctx, models.ItemKindManufacturing, id, quantity)
	case models.ItemKindBoughtOut:
		return r.reserve(ctx, models.ItemKindBoughtOut, id, quantity)
	default:
		rec, err := r.reserve(ctx, models.ItemKindManufacturing, id, quantity)
		if errors.Is(err, services.ErrItemNotFound) {
			return r.reserve(ctx, models.ItemKindBoughtOut, id, quantity)
		}
		return rec, err
	}
}

// reserve decrements the stock column with a guarded UPDATE. Zero rows
// affected means the row is missing or the stock ran short; a follow-up
// read tells the two apart.
func (r *InventoryRepository) reserve(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error) {
	now := time.Now()

	var res *gorm.DB
	if kind == models.ItemKindManufacturing {
		res = r.db.WithContext(ctx).Model(&models.ManufacturingItem{}).
			Where("id = ? AND wip_stock >= ?", id, quantity).
			Updates(map[string]interface{}{
				"wip_stock":    gorm.Expr("wip_stock - ?", quantity),
				"last_updated": now,
			})
	} else {
		res = r.db.WithContext(ctx).Model(&models.BoughtOutItem{}).
			Where("id = ? AND quantity >= ?", id, quantity).
			Updates(map[string]interface{}{
				"quantity":     gorm.Expr("quantity - ?", quantity),
				"last_updated": now,
			})
	}

	if res.Error != nil {
		return nil, &services.PersistenceError{Op: "failed to reserve stock", Err: res.Error}
	}

	if res.RowsAffected == 0 {
		rec, err := r.lookupKind(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		return nil, &services.InsufficientStockError{
			ItemCode:  rec.ItemCode,
			Available: rec.AvailableQuantity,
			Requested: quantity,
		}
	}

	return r.lookupKind(ctx, kind, id)
}

func (r *InventoryRepository) Release(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error) {
	switch kind {
	case models.ItemKindManufacturing:
		return r.release(ctx, models.ItemKindManufacturing, id, quantity)
	case models.ItemKindBoughtOut:
		return r.release(ctx, models.ItemKindBoughtOut, id, quantity)
	default:
		rec, err := r.release(ctx, models.ItemKindManufacturing, id, quantity)
		if errors.Is(err, services.ErrItemNotFound) {
			return r.release(ctx, models.ItemKindBoughtOut, id, quantity)
		}
		return rec, err
	}
}

// release restores previously reserved stock. No upper bound applies.
func (r *InventoryRepository) release(ctx context.Context, kind models.ItemKind, id types.SnowflakeID, quantity int) (*models.InventoryRecord, error) {
	now := time.Now()

	var res *gorm.DB
	if kind == models.ItemKindManufacturing {
		res = r.db.WithContext(ctx).Model(&models.ManufacturingItem{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"wip_stock":    gorm.Expr("wip_stock + ?", quantity),
				"last_updated": now,
			})
	} else {
		res = r.db.WithContext(ctx).Model(&models.BoughtOutItem{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"quantity":     gorm.Expr("quantity + ?", quantity),
				"last_updated": now,
			})
	}

	if res.Error != nil {
		return nil, &services.PersistenceError{Op: "failed to release stock", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, services.ErrItemNotFound
	}

	return r.lookupKind(ctx, kind, id)
}

func (r *InventoryRepository) lookupKind(ctx context.Context, kind models.ItemKind, id types.SnowflakeID) (*models.InventoryRecord, error) {
	if kind == models.ItemKindManufacturing {
		return r.lookupManufacturing(ctx, id)
	}
	return r.lookupBoughtOut(ctx, id)
}
