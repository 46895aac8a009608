package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"logbook-service/internal/middleware"
	"logbook-service/internal/models"
	"logbook-service/internal/repository"
	"logbook-service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// Counter for entry writes
	entryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_entry_writes_total",
			Help: "Total number of entry create/update operations",
		},
		[]string{"operation", "status"}, // operation: create/update, status: success/failure
	)

	// Counter for verification records reset by data changes
	verificationResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logbook_verification_resets_total",
			Help: "Total number of verification records reset by entry data changes",
		},
	)
)

type EntryHandler struct {
	entryService *service.EntryService
}

func NewEntryHandler(entryService *service.EntryService) *EntryHandler {
	return &EntryHandler{
		entryService: entryService,
	}
}

func (h *EntryHandler) RegisterRoutes(app *fiber.App) {
	protectedGroup := app.Group("/protected", middleware.UserRequired())

	protectedGroup.Post("/templates/:templateId/entries", h.CreateEntry, middleware.PermissionRequired(middleware.WriteEntryPermission))
	protectedGroup.Get("/templates/:templateId/entries", h.ListEntries, middleware.PermissionRequired(middleware.ReadEntryPermission))
	protectedGroup.Get("/entries/:entryId", h.GetEntry, middleware.PermissionRequired(middleware.ReadEntryPermission))
	protectedGroup.Put("/entries/:entryId", h.UpdateEntry, middleware.PermissionRequired(middleware.WriteEntryPermission))
	protectedGroup.Delete("/entries/:entryId", h.DeleteEntry, middleware.PermissionRequired(middleware.DeleteEntryPermission))
	protectedGroup.Get("/users/:userId/entries", h.ListByWriter, middleware.PermissionRequired(middleware.ReadEntryPermission))
}

type entryRequest struct {
	Payload models.Payload `json:"payload"`
}

func (h *EntryHandler) CreateEntry(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	writerID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req entryRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entry, err := h.entryService.CreateEntry(ctx, templateID, writerID, req.Payload)
	if err != nil {
		entryWrites.WithLabelValues("create", "failure").Inc()
		log.Printf("Failed to create entry: %v", err)

		if errors.Is(err, repository.ErrTemplateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create entry",
		})
	}

	entryWrites.WithLabelValues("create", "success").Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Entry created successfully",
		"data": fiber.Map{
			"entry": entry,
		},
	})
}

func (h *EntryHandler) UpdateEntry(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	actorID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req entryRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entry, resetCount, err := h.entryService.UpdateEntry(ctx, entryID, req.Payload, actorID)
	if err != nil {
		entryWrites.WithLabelValues("update", "failure").Inc()
		log.Printf("Failed to update entry %s: %v", entryID.Hex(), err)

		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update entry",
		})
	}

	entryWrites.WithLabelValues("update", "success").Inc()
	verificationResets.Add(float64(resetCount))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Entry updated successfully",
		"data": fiber.Map{
			"entry":        entry,
			"recordsReset": resetCount,
		},
	})
}

func (h *EntryHandler) GetEntry(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entry, err := h.entryService.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		log.Printf("Failed to get entry %s: %v", entryID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get entry",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"entry": entry,
		},
	})
}

func (h *EntryHandler) ListEntries(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := h.entryService.ListByTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		log.Printf("Failed to list entries for template %s: %v", templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list entries",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"entries": entries,
			"count":   len(entries),
		},
	})
}

func (h *EntryHandler) ListByWriter(c fiber.Ctx) error {
	writerID, err := bson.ObjectIDFromHex(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := h.entryService.ListByWriter(ctx, writerID)
	if err != nil {
		log.Printf("Failed to list entries for writer %s: %v", writerID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list entries",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"entries": entries,
			"count":   len(entries),
		},
	})
}

func (h *EntryHandler) DeleteEntry(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.entryService.DeleteEntry(ctx, entryID); err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		log.Printf("Failed to delete entry %s: %v", entryID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete entry",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Entry deleted successfully",
	})
}

// currentUserID reads the gateway-injected identity header.
func currentUserID(c fiber.Ctx) (bson.ObjectID, error) {
	return bson.ObjectIDFromHex(c.Get("X-User-ID"))
}
