package routes

import (
	"dispatch-app/config"
	"dispatch-app/controllers"
	"dispatch-app/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupInventoryRoutes(app *fiber.App, db *gorm.DB) {
	inventoryController := controllers.NewInventoryController(db)

	api := app.Group(config.MAIN_ROUTES+"/inventory", middleware.AuthMiddleware)

	api.Get("/items/:id", inventoryController.GetRecordByID)

	api.Post("/manufacturing", inventoryController.CreateManufacturingItem)
	api.Get("/manufacturing", inventoryController.GetManufacturingItems)
	api.Get("/manufacturing/:id", inventoryController.GetManufacturingItemByID)
	api.Put("/manufacturing/:id", inventoryController.UpdateManufacturingItem)
	api.Delete("/manufacturing/:id", inventoryController.DeleteManufacturingItem)

	api.Post("/bought-out", inventoryController.CreateBoughtOutItem)
	api.Get("/bought-out", inventoryController.GetBoughtOutItems)
	api.Get("/bought-out/:id", inventoryController.GetBoughtOutItemByID)
	api.Put("/bought-out/:id", inventoryController.UpdateBoughtOutItem)
	api.Delete("/bought-out/:id", inventoryController.DeleteBoughtOutItem)
}
