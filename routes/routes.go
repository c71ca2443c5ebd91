package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	controller "renolink/controllers"
	"renolink/crm"
	"renolink/middleware"
)

func SetupRoutes(app *fiber.App, service *crm.Service) {
	leadController := controller.NewLeadController(service, log.New(os.Stdout, "LEAD: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Board view behind the kanban screen
	api.Get("/board", leadController.GetBoard)

	// Lead reads
	leads := api.Group("/leads")
	leads.Get("/", leadController.GetLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Get("/:id/notes", leadController.GetNotes)
	leads.Get("/:id/audit", leadController.GetAuditTrail)

	// Lead mutations, rate limited per supplier user
	mutations := leads.Group("", middleware.MutationRateLimiter())
	mutations.Post("/", leadController.CreateLead)
	mutations.Post("/:id/status", leadController.ChangeStatus)
	mutations.Post("/:id/snooze", leadController.Snooze)
	mutations.Post("/:id/assign", leadController.Assign)
	mutations.Post("/:id/notes", leadController.AddNote)
	mutations.Post("/:id/quote-draft", leadController.CreateQuoteDraft)
	mutations.Delete("/:id", leadController.DeleteLead)

	log.Println("Lead routes initialized successfully")
}
