package models

import "testing"

func TestParseItemKind(t *testing.T) {
	cases := map[string]ItemKind{
		"manufacturing": ItemKindManufacturing,
		"bought_out":    ItemKindBoughtOut,
		"boughtout":     ItemKindBoughtOut,
		"bought-out":    ItemKindBoughtOut,
		"":              ItemKindUnknown,
		"garbage":       ItemKindUnknown,
	}
	for input, want := range cases {
		if got := ParseItemKind(input); got != want {
			t.Errorf("ParseItemKind(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsValidDispatchStatus(t *testing.T) {
	for _, status := range []string{StatusDispatched, StatusInTransit, StatusDelivered, StatusCancelled} {
		if !IsValidDispatchStatus(status) {
			t.Errorf("%q should be valid", status)
		}
	}
	for _, status := range []string{"", "dispatched", "Done"} {
		if IsValidDispatchStatus(status) {
			t.Errorf("%q should be invalid", status)
		}
	}
}

func TestDispatchHeaderTotalQuantity(t *testing.T) {
	header := DispatchHeader{
		Items: []DispatchDetail{
			{Quantity: 4},
			{Quantity: 7},
		},
	}
	if got := header.TotalQuantity(); got != 11 {
		t.Errorf("TotalQuantity() = %d, want 11", got)
	}

	empty := DispatchHeader{}
	if got := empty.TotalQuantity(); got != 0 {
		t.Errorf("TotalQuantity() on empty = %d, want 0", got)
	}
}
