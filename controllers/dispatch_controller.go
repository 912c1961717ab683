package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dispatch-app/repositories"
	"dispatch-app/services"
	"dispatch-app/types"
	"dispatch-app/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type DispatchController struct {
	DB *gorm.DB
}

func NewDispatchController(DB *gorm.DB) *DispatchController {
	return &DispatchController{DB: DB}
}

func (c *DispatchController) service() *services.DispatchService {
	return services.NewDispatchService(
		repositories.NewInventoryRepository(c.DB),
		repositories.NewDispatchRepository(c.DB),
	)
}

type dispatchPayload struct {
	Destination   string                       `json:"destination"`
	CustomerName  string                       `json:"customer_name"`
	Address       string                       `json:"address"`
	ContactNumber string                       `json:"contact_number"`
	DispatchDate  string                       `json:"dispatch_date"`
	DeliveryDate  string                       `json:"delivery_date"`
	TransportMode string                       `json:"transport_mode"`
	VehicleNumber string                       `json:"vehicle_number"`
	DriverName    string                       `json:"driver_name"`
	DriverContact string                       `json:"driver_contact"`
	DispatchedBy  string                       `json:"dispatched_by"`
	Remarks       string                       `json:"remarks"`
	Items         []services.DispatchLineInput `json:"items"`
}

func (c *DispatchController) CreateDispatch(ctx *fiber.Ctx) error {
	var payload dispatchPayload

	if err := ctx.BodyParser(&payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payload",
			"error":   err.Error(),
		})
	}

	dispatchDate, err := parseDate(payload.DispatchDate)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid dispatch date",
			"error":   err.Error(),
		})
	}

	var deliveryDate *time.Time
	if payload.DeliveryDate != "" {
		d, err := parseDate(payload.DeliveryDate)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid delivery date",
				"error":   err.Error(),
			})
		}
		deliveryDate = &d
	}

	dispatchedBy := payload.DispatchedBy
	if dispatchedBy == "" {
		if username, ok := ctx.Locals("username").(string); ok {
			dispatchedBy = username
		}
	}

	input := services.CreateDispatchInput{
		Destination:   payload.Destination,
		CustomerName:  payload.CustomerName,
		Address:       payload.Address,
		ContactNumber: payload.ContactNumber,
		DispatchDate:  dispatchDate,
		DeliveryDate:  deliveryDate,
		TransportMode: payload.TransportMode,
		VehicleNumber: payload.VehicleNumber,
		DriverName:    payload.DriverName,
		DriverContact: payload.DriverContact,
		DispatchedBy:  dispatchedBy,
		Remarks:       payload.Remarks,
		Items:         payload.Items,
	}

	header, err := c.service().CreateDispatch(ctx.UserContext(), input)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	go utils.SendDispatchNotification(header)

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"message":  "Dispatch record created successfully",
		"dispatch": header,
		"items":    header.Items,
	})
}

func (c *DispatchController) GetDispatchList(ctx *fiber.Ctx) error {
	filter, err := parseDispatchFilter(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	repo := repositories.NewDispatchRepository(c.DB)
	headers, pagination, err := repo.List(ctx.UserContext(), filter)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    true,
		"dispatches": headers,
		"pagination": pagination,
	})
}

func (c *DispatchController) GetDispatchDetails(ctx *fiber.Ctx) error {
	repo := repositories.NewDispatchRepository(c.DB)
	views, err := repo.RecentLineDetails(ctx.UserContext(), 50)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    views,
	})
}

func (c *DispatchController) GetDispatchByID(ctx *fiber.Ctx) error {
	id, err := parseDispatchID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid dispatch id",
		})
	}

	repo := repositories.NewDispatchRepository(c.DB)
	header, err := repo.GetByID(ctx.UserContext(), id)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":  true,
		"dispatch": header,
	})
}

func (c *DispatchController) UpdateDispatch(ctx *fiber.Ctx) error {
	id, err := parseDispatchID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid dispatch id",
		})
	}

	var payload struct {
		Status        *string `json:"status"`
		DeliveryDate  *string `json:"delivery_date"`
		VehicleNumber *string `json:"vehicle_number"`
		DriverName    *string `json:"driver_name"`
		DriverContact *string `json:"driver_contact"`
		Remarks       *string `json:"remarks"`
	}
	if err := ctx.BodyParser(&payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payload",
			"error":   err.Error(),
		})
	}

	// Line-item mutations are rejected outright, not silently dropped.
	var rawFields map[string]json.RawMessage
	if err := json.Unmarshal(ctx.Body(), &rawFields); err == nil {
		if _, ok := rawFields["items"]; ok {
			return renderDispatchError(ctx, services.ErrLineItemsImmutable)
		}
		if _, ok := rawFields["quantity"]; ok {
			return renderDispatchError(ctx, services.ErrLineItemsImmutable)
		}
	}

	input := services.UpdateDispatchInput{
		Status:        payload.Status,
		VehicleNumber: payload.VehicleNumber,
		DriverName:    payload.DriverName,
		DriverContact: payload.DriverContact,
		Remarks:       payload.Remarks,
	}
	if payload.DeliveryDate != nil && *payload.DeliveryDate != "" {
		d, err := parseDate(*payload.DeliveryDate)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid delivery date",
				"error":   err.Error(),
			})
		}
		input.DeliveryDate = &d
	}

	header, err := c.service().UpdateDispatch(ctx.UserContext(), id, input)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":  true,
		"message":  "Dispatch updated successfully",
		"dispatch": header,
	})
}

func (c *DispatchController) DeleteDispatch(ctx *fiber.Ctx) error {
	id, err := parseDispatchID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid dispatch id",
		})
	}

	result, err := c.service().DeleteDispatch(ctx.UserContext(), id)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	response := fiber.Map{
		"success":        true,
		"message":        "Dispatch deleted successfully and inventory restored",
		"restored_items": result.RestoredItems,
		"total_items":    result.TotalItems,
	}
	if len(result.Gaps) > 0 {
		response["message"] = "Dispatch deleted; some stock could not be restored"
		response["reconciliation_gaps"] = result.Gaps
	}

	return ctx.Status(fiber.StatusOK).JSON(response)
}

func (c *DispatchController) GetDispatchStats(ctx *fiber.Ctx) error {
	repo := repositories.NewDispatchRepository(c.DB)
	stats, err := repo.Stats(ctx.UserContext())
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":          true,
		"summary":          stats.Summary,
		"status_breakdown": stats.StatusBreakdown,
		"monthly_trends":   stats.MonthlyTrends,
	})
}

// ExportExcel streams the filtered dispatch list as an xlsx workbook.
func (c *DispatchController) ExportExcel(ctx *fiber.Ctx) error {
	filter, err := parseDispatchFilter(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}
	filter.Limit = 10000
	filter.Page = 1

	repo := repositories.NewDispatchRepository(c.DB)
	headers, _, err := repo.List(ctx.UserContext(), filter)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	f := excelize.NewFile()
	sheet := "Sheet1"

	f.SetCellValue(sheet, "A1", "Dispatch No")
	f.SetCellValue(sheet, "B1", "Destination")
	f.SetCellValue(sheet, "C1", "Customer")
	f.SetCellValue(sheet, "D1", "Dispatch Date")
	f.SetCellValue(sheet, "E1", "Status")
	f.SetCellValue(sheet, "F1", "Item Code")
	f.SetCellValue(sheet, "G1", "Item Name")
	f.SetCellValue(sheet, "H1", "Quantity")
	f.SetCellValue(sheet, "I1", "Vehicle")
	f.SetCellValue(sheet, "J1", "Driver")

	row := 2
	for _, header := range headers {
		for _, item := range header.Items {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), header.ID.String())
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), header.Destination)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), header.CustomerName)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), header.DispatchDate.Format("2006-01-02"))
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), header.Status)
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), item.ItemCode)
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), item.ItemName)
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), item.Quantity)
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), header.VehicleNumber)
			f.SetCellValue(sheet, fmt.Sprintf("J%d", row), header.DriverName)
			row++
		}
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", `attachment; filename="dispatches.xlsx"`)

	if err := f.Write(ctx.Response().BodyWriter()); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate Excel file",
			"error":   err.Error(),
		})
	}

	return nil
}

func parseDispatchID(ctx *fiber.Ctx) (types.SnowflakeID, error) {
	raw := ctx.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return types.SnowflakeID(id), nil
}

func parseDispatchFilter(ctx *fiber.Ctx) (repositories.DispatchFilter, error) {
	filter := repositories.DispatchFilter{
		Status:      ctx.Query("status"),
		Destination: ctx.Query("destination"),
		Search:      ctx.Query("search"),
		Page:        ctx.QueryInt("page", 1),
		Limit:       ctx.QueryInt("limit", 100),
	}

	if raw := ctx.Query("start_date"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid start date: %s", raw)
		}
		filter.StartDate = &d
	}
	if raw := ctx.Query("end_date"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid end date: %s", raw)
		}
		filter.EndDate = &d
	}

	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// renderDispatchError maps the service error taxonomy onto HTTP statuses.
// Every response carries a machine-readable kind next to the message.
func renderDispatchError(ctx *fiber.Ctx, err error) error {
	var validationErr *services.ValidationError
	var stockErr *services.InsufficientStockError
	var persistErr *services.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"kind":    "validation_error",
			"message": validationErr.Message,
		})
	case errors.As(err, &stockErr):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"kind":      "insufficient_stock",
			"message":   stockErr.Error(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, services.ErrLineItemsImmutable):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"kind":    "unsupported_operation",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrDispatchNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"kind":    "not_found",
			"message": "Dispatch not found",
		})
	case errors.Is(err, services.ErrItemNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"kind":    "not_found",
			"message": "Inventory item not found",
		})
	case errors.As(err, &persistErr):
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"kind":    "persistence_error",
			"message": persistErr.Op,
			"error":   persistErr.Error(),
		})
	default:
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"kind":    "internal_error",
			"message": "Unexpected error",
			"error":   err.Error(),
		})
	}
}
