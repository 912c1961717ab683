package main

import (
	"dispatch-app/config"
	"dispatch-app/controllers/idgen"
	"dispatch-app/database"
	"dispatch-app/middleware"
	"dispatch-app/routes"

	"github.com/gofiber/fiber/v2"
)

func main() {
	config.LoadConfig()
	log := config.GetLogger()

	db, err := database.Open()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to auto migrate: %v", err)
	}

	idgen.Init()
	database.RunSeeders(db)

	app := fiber.New()

	config.SetupCORS(app)
	app.Use(middleware.RequestLogger)

	routes.SetupAuthRoutes(app, db)
	routes.SetupInventoryRoutes(app, db)
	routes.SetupDispatchRoutes(app, db)

	log.Infof("Server listening on port %s", config.APP_PORT)
	if err := app.Listen(":" + config.APP_PORT); err != nil {
		log.Fatal(err)
	}
}
