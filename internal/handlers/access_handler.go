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
	// Counter for grant mutations
	accessGrantChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_access_grant_changes_total",
			Help: "Total number of access grant mutations",
		},
		[]string{"operation"}, // operation: grant/revoke
	)
)

type AccessHandler struct {
	accessService *service.AccessService
}

func NewAccessHandler(accessService *service.AccessService) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
	}
}

func (h *AccessHandler) RegisterRoutes(app *fiber.App) {
	protectedGroup := app.Group("/protected/templates/:templateId/grants", middleware.UserRequired(), middleware.PermissionRequired(middleware.ManageAccessPermission))

	protectedGroup.Post("/", h.Grant)
	protectedGroup.Get("/", h.ListByTemplate)
	protectedGroup.Delete("/:userId", h.Revoke)
}

type grantRequest struct {
	UserID   string `json:"userId"`
	RoleName string `json:"roleName"`
}

func (h *AccessHandler) Grant(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	grantedBy, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req grantRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID, err := bson.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id",
		})
	}
	if req.RoleName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Role name is required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	grant, err := h.accessService.Grant(ctx, userID, templateID, req.RoleName, grantedBy)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown role",
			})
		}
		log.Printf("Failed to grant role %s to user %s on template %s: %v",
			req.RoleName, req.UserID, templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grant role",
		})
	}

	accessGrantChanges.WithLabelValues("grant").Inc()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Role granted successfully",
		"data": fiber.Map{
			"grant": grant,
		},
	})
}

func (h *AccessHandler) Revoke(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	userID, err := bson.ObjectIDFromHex(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.accessService.Revoke(ctx, userID, templateID); err != nil {
		if errors.Is(err, repository.ErrGrantNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Grant not found",
			})
		}
		log.Printf("Failed to revoke grant for user %s on template %s: %v",
			userID.Hex(), templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to revoke grant",
		})
	}

	accessGrantChanges.WithLabelValues("revoke").Inc()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Grant revoked successfully",
	})
}

func (h *AccessHandler) ListByTemplate(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grants, err := h.accessService.ListByTemplate(ctx, templateID)
	if err != nil {
		log.Printf("Failed to list grants for template %s: %v", templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list grants",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"grants": grants,
			"count":  len(grants),
		},
	})
}
