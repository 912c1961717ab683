package models

import (
	"time"

	"dispatch-app/types"
)

const (
	StatusDispatched = "Dispatched"
	StatusInTransit  = "In Transit"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"
)

func IsValidDispatchStatus(status string) bool {
	switch status {
	case StatusDispatched, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// DispatchHeader is the dispatch aggregate root. Line items and their
// quantities are immutable once the header is created; only status and
// logistics metadata may change afterwards.
type DispatchHeader struct {
	ID            types.SnowflakeID `json:"ID" gorm:"primaryKey"`
	Destination   string            `json:"destination" gorm:"not null;index"`
	CustomerName  string            `json:"customer_name"`
	Address       string            `json:"address"`
	ContactNumber string            `json:"contact_number"`
	DispatchDate  time.Time         `json:"dispatch_date" gorm:"not null;index"`
	DeliveryDate  *time.Time        `json:"delivery_date"`
	TransportMode string            `json:"transport_mode" gorm:"default:Road"`
	VehicleNumber string            `json:"vehicle_number"`
	DriverName    string            `json:"driver_name"`
	DriverContact string            `json:"driver_contact"`
	DispatchedBy  string            `json:"dispatched_by"`
	Remarks       string            `json:"remarks"`
	Status        string            `json:"status" gorm:"default:Dispatched;index"`
	Items         []DispatchDetail  `json:"items" gorm:"foreignKey:DispatchID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// DispatchDetail is one reserved line. ItemCode and ItemName are a
// snapshot taken from the inventory record at creation time so the line
// still renders after the item is renamed or removed. ItemKind records
// which ledger the quantity was reserved from.
type DispatchDetail struct {
	ID         uint              `json:"ID" gorm:"primaryKey"`
	DispatchID types.SnowflakeID `json:"dispatch_id" gorm:"index;not null"`
	ItemID     types.SnowflakeID `json:"item_id" gorm:"index;not null"`
	ItemKind   ItemKind          `json:"item_kind"`
	ItemCode   string            `json:"item_code"`
	ItemName   string            `json:"item_name"`
	Quantity   int               `json:"quantity" gorm:"not null"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (h *DispatchHeader) TotalQuantity() int {
	total := 0
	for _, item := range h.Items {
		total += item.Quantity
	}
	return total
}
