package routes

import (
	"dispatch-app/config"
	"dispatch-app/controllers"
	"dispatch-app/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupDispatchRoutes(app *fiber.App, db *gorm.DB) {
	dispatchController := controllers.NewDispatchController(db)

	api := app.Group(config.MAIN_ROUTES+"/dispatches", middleware.AuthMiddleware)

	api.Post("/", dispatchController.CreateDispatch)
	api.Get("/", dispatchController.GetDispatchList)
	api.Get("/details", dispatchController.GetDispatchDetails)
	api.Get("/export", dispatchController.ExportExcel)
	api.Get("/stats/summary", dispatchController.GetDispatchStats)
	api.Get("/:id", dispatchController.GetDispatchByID)
	api.Put("/:id", dispatchController.UpdateDispatch)
	api.Delete("/:id", dispatchController.DeleteDispatch)
}
