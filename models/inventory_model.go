package models

import (
	"time"

	"dispatch-app/types"
)

// ItemKind tags which stock ledger an inventory record lives in.
// Dispatch details persist the kind so a delete never has to probe
// both tables to find out where a quantity came from.
type ItemKind string

const (
	ItemKindUnknown       ItemKind = ""
	ItemKindManufacturing ItemKind = "manufacturing"
	ItemKindBoughtOut     ItemKind = "bought_out"
)

func ParseItemKind(s string) ItemKind {
	switch s {
	case "manufacturing":
		return ItemKindManufacturing
	case "bought_out", "boughtout", "bought-out":
		return ItemKindBoughtOut
	default:
		return ItemKindUnknown
	}
}

// ManufacturingItem carries in-process (WIP) stock of items produced
// in-house.
type ManufacturingItem struct {
	ID          types.SnowflakeID `json:"ID" gorm:"primaryKey"`
	ItemCode    string            `json:"item_code" gorm:"uniqueIndex;not null" validate:"required,min=3"`
	ItemName    string            `json:"item_name" gorm:"not null" validate:"required,min=3"`
	WipStock    int               `json:"wip_stock" gorm:"default:0" validate:"gte=0"`
	LastUpdated time.Time         `json:"last_updated"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// BoughtOutItem carries finished stock procured externally.
type BoughtOutItem struct {
	ID          types.SnowflakeID `json:"ID" gorm:"primaryKey"`
	ItemCode    string            `json:"item_code" gorm:"uniqueIndex;not null" validate:"required,min=3"`
	ItemName    string            `json:"item_name" gorm:"not null" validate:"required,min=3"`
	Quantity    int               `json:"quantity" gorm:"default:0" validate:"gte=0"`
	LastUpdated time.Time         `json:"last_updated"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// InventoryRecord is the kind-tagged view both ledgers are read through.
// AvailableQuantity maps to WipStock for manufacturing items and to
// Quantity for bought-out items.
type InventoryRecord struct {
	ID                types.SnowflakeID `json:"ID"`
	ItemCode          string            `json:"item_code"`
	ItemName          string            `json:"item_name"`
	AvailableQuantity int               `json:"available_quantity"`
	Kind              ItemKind          `json:"kind"`
	LastUpdated       time.Time         `json:"last_updated"`
}

func (m *ManufacturingItem) Record() *InventoryRecord {
	return &InventoryRecord{
		ID:                m.ID,
		ItemCode:          m.ItemCode,
		ItemName:          m.ItemName,
		AvailableQuantity: m.WipStock,
		Kind:              ItemKindManufacturing,
		LastUpdated:       m.LastUpdated,
	}
}

func (b *BoughtOutItem) Record() *InventoryRecord {
	return &InventoryRecord{
		ID:                b.ID,
		ItemCode:          b.ItemCode,
		ItemName:          b.ItemName,
		AvailableQuantity: b.Quantity,
		Kind:              ItemKindBoughtOut,
		LastUpdated:       b.LastUpdated,
	}
}
