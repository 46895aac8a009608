package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"logbook-service/internal/middleware"
	"logbook-service/internal/repository"
	"logbook-service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// Counter for supervisor decisions
	verificationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_verification_decisions_total",
			Help: "Total number of supervisor decisions",
		},
		[]string{"outcome"}, // outcome: approved/rejected/revoked
	)
)

type VerificationHandler struct {
	verificationService *service.VerificationService
}

func NewVerificationHandler(verificationService *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
	}
}

func (h *VerificationHandler) RegisterRoutes(app *fiber.App) {
	protectedGroup := app.Group("/protected", middleware.UserRequired())

	protectedGroup.Post("/entries/:entryId/verification/decision", h.Decide, middleware.PermissionRequired(middleware.VerifyEntryPermission))
	protectedGroup.Delete("/entries/:entryId/verification/decision", h.RevokeDecision, middleware.PermissionRequired(middleware.VerifyEntryPermission))
	protectedGroup.Get("/entries/:entryId/verification", h.DetailedStatus, middleware.PermissionRequired(middleware.ReadEntryPermission))
	protectedGroup.Get("/entries/:entryId/verification/progress", h.Progress, middleware.PermissionRequired(middleware.ReadEntryPermission))
	protectedGroup.Get("/entries/:entryId/verification/records", h.Records, middleware.PermissionRequired(middleware.ReadEntryPermission))
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

func (h *VerificationHandler) Decide(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	supervisorID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req decisionRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.verificationService.Decide(ctx, entryID, supervisorID, req.Approved, req.Notes); err != nil {
		log.Printf("Failed to record decision on entry %s by %s: %v", entryID.Hex(), supervisorID.Hex(), err)

		// "Not a supervisor" and "entry not found" imply different
		// corrective actions, so they get distinct responses.
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		if errors.Is(err, service.ErrNotSupervisor) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You are not a supervisor for this template",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record decision",
		})
	}

	outcome := "rejected"
	if req.Approved {
		outcome = "approved"
	}
	verificationDecisions.WithLabelValues(outcome).Inc()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Decision recorded successfully",
	})
}

func (h *VerificationHandler) RevokeDecision(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	supervisorID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.verificationService.RevokeDecision(ctx, entryID, supervisorID); err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		if errors.Is(err, repository.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No verification record to revoke",
			})
		}
		log.Printf("Failed to revoke decision on entry %s by %s: %v", entryID.Hex(), supervisorID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to revoke decision",
		})
	}

	verificationDecisions.WithLabelValues("revoked").Inc()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Decision revoked successfully",
	})
}

func (h *VerificationHandler) DetailedStatus(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := h.verificationService.DetailedStatus(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		log.Printf("Failed to get verification status for entry %s: %v", entryID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get verification status",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"status": status,
		},
	})
}

func (h *VerificationHandler) Progress(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	progress, err := h.verificationService.Progress(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		log.Printf("Failed to get verification progress for entry %s: %v", entryID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get verification progress",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"progress": progress,
		},
	})
}

func (h *VerificationHandler) Records(c fiber.Ctx) error {
	entryID, err := bson.ObjectIDFromHex(c.Params("entryId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := h.verificationService.Records(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Entry not found",
			})
		}
		log.Printf("Failed to list verification records for entry %s: %v", entryID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list verification records",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"records": records,
			"count":   len(records),
		},
	})
}
