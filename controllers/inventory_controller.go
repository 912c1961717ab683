package controllers

import (
	"errors"
	"time"

	"dispatch-app/controllers/idgen"
	"dispatch-app/models"
	"dispatch-app/repositories"
	"dispatch-app/types"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// InventoryController owns the lifecycle of inventory records. The
// reconciliation engine only ever adjusts quantities; creating, renaming
// and removing items happens here.
type InventoryController struct {
	DB *gorm.DB
}

func NewInventoryController(DB *gorm.DB) *InventoryController {
	return &InventoryController{DB: DB}
}

type manufacturingItemInput struct {
	ItemCode string `json:"item_code" validate:"required,min=3"`
	ItemName string `json:"item_name" validate:"required,min=3"`
	WipStock int    `json:"wip_stock" validate:"gte=0"`
}

type boughtOutItemInput struct {
	ItemCode string `json:"item_code" validate:"required,min=3"`
	ItemName string `json:"item_name" validate:"required,min=3"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (c *InventoryController) CreateManufacturingItem(ctx *fiber.Ctx) error {
	var input manufacturingItemInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	item := models.ManufacturingItem{
		ID:          types.SnowflakeID(idgen.GenerateID()),
		ItemCode:    input.ItemCode,
		ItemName:    input.ItemName,
		WipStock:    input.WipStock,
		LastUpdated: time.Now(),
	}
	if err := c.DB.Create(&item).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create manufacturing item",
			"error":   err.Error(),
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (c *InventoryController) GetManufacturingItems(ctx *fiber.Ctx) error {
	var items []models.ManufacturingItem
	if err := c.DB.Order("item_code").Find(&items).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": items})
}

func (c *InventoryController) GetManufacturingItemByID(ctx *fiber.Ctx) error {
	var item models.ManufacturingItem
	if err := c.DB.First(&item, "id = ?", ctx.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Manufacturing item not found"})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": item})
}

func (c *InventoryController) UpdateManufacturingItem(ctx *fiber.Ctx) error {
	var item models.ManufacturingItem
	if err := c.DB.First(&item, "id = ?", ctx.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Manufacturing item not found"})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	var input manufacturingItemInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	item.ItemCode = input.ItemCode
	item.ItemName = input.ItemName
	item.WipStock = input.WipStock
	item.LastUpdated = time.Now()

	if err := c.DB.Save(&item).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": item})
}

func (c *InventoryController) DeleteManufacturingItem(ctx *fiber.Ctx) error {
	res := c.DB.Delete(&models.ManufacturingItem{}, "id = ?", ctx.Params("id"))
	if res.Error != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Manufacturing item not found"})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "Manufacturing item deleted"})
}

func (c *InventoryController) CreateBoughtOutItem(ctx *fiber.Ctx) error {
	var input boughtOutItemInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	item := models.BoughtOutItem{
		ID:          types.SnowflakeID(idgen.GenerateID()),
		ItemCode:    input.ItemCode,
		ItemName:    input.ItemName,
		Quantity:    input.Quantity,
		LastUpdated: time.Now(),
	}
	if err := c.DB.Create(&item).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create bought-out item",
			"error":   err.Error(),
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (c *InventoryController) GetBoughtOutItems(ctx *fiber.Ctx) error {
	var items []models.BoughtOutItem
	if err := c.DB.Order("item_code").Find(&items).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": items})
}

func (c *InventoryController) GetBoughtOutItemByID(ctx *fiber.Ctx) error {
	var item models.BoughtOutItem
	if err := c.DB.First(&item, "id = ?", ctx.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bought-out item not found"})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": item})
}

func (c *InventoryController) UpdateBoughtOutItem(ctx *fiber.Ctx) error {
	var item models.BoughtOutItem
	if err := c.DB.First(&item, "id = ?", ctx.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bought-out item not found"})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	var input boughtOutItemInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	item.ItemCode = input.ItemCode
	item.ItemName = input.ItemName
	item.Quantity = input.Quantity
	item.LastUpdated = time.Now()

	if err := c.DB.Save(&item).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": item})
}

func (c *InventoryController) DeleteBoughtOutItem(ctx *fiber.Ctx) error {
	res := c.DB.Delete(&models.BoughtOutItem{}, "id = ?", ctx.Params("id"))
	if res.Error != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bought-out item not found"})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "Bought-out item deleted"})
}

// GetRecordByID resolves an id through the kind-tagged view, probing the
// manufacturing ledger first then bought-out.
func (c *InventoryController) GetRecordByID(ctx *fiber.Ctx) error {
	id, err := parseDispatchID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid item id",
		})
	}

	repo := repositories.NewInventoryRepository(c.DB)
	record, err := repo.Lookup(ctx.UserContext(), models.ParseItemKind(ctx.Query("kind")), id)
	if err != nil {
		return renderDispatchError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": record})
}
