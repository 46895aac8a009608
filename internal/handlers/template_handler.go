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
	"go.mongodb.org/mongo-driver/v2/bson"
)

type TemplateHandler struct {
	templateService *service.TemplateService
}

func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

func (h *TemplateHandler) RegisterRoutes(app *fiber.App) {
	protectedGroup := app.Group("/protected/templates", middleware.UserRequired())

	protectedGroup.Post("/", h.CreateTemplate, middleware.PermissionRequired(middleware.WriteTemplatePermission))
	protectedGroup.Get("/:templateId", h.GetTemplate, middleware.PermissionRequired(middleware.ReadTemplatePermission))
	protectedGroup.Put("/:templateId", h.UpdateTemplate, middleware.PermissionRequired(middleware.WriteTemplatePermission))
	protectedGroup.Delete("/:templateId", h.DeleteTemplate, middleware.PermissionRequired(middleware.DeleteTemplatePermission))
	protectedGroup.Get("/institution/:institutionId", h.ListByInstitution, middleware.PermissionRequired(middleware.ReadTemplatePermission))
}

func (h *TemplateHandler) CreateTemplate(c fiber.Ctx) error {
	creatorID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var template models.Template
	if err := c.Bind().Body(&template); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if template.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Template name is required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := h.templateService.Create(ctx, &template, creatorID)
	if err != nil {
		log.Printf("Failed to create template: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Template created successfully",
		"data": fiber.Map{
			"template": created,
		},
	})
}

func (h *TemplateHandler) GetTemplate(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	template, err := h.templateService.Get(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		log.Printf("Failed to get template %s: %v", templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get template",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"template": template,
		},
	})
}

func (h *TemplateHandler) UpdateTemplate(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	var template models.Template
	if err := c.Bind().Body(&template); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	template.ID = templateID

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.templateService.Update(ctx, &template); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		log.Printf("Failed to update template %s: %v", templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Template updated successfully",
	})
}

func (h *TemplateHandler) DeleteTemplate(c fiber.Ctx) error {
	templateID, err := bson.ObjectIDFromHex(c.Params("templateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.templateService.Delete(ctx, templateID); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		log.Printf("Failed to delete template %s: %v", templateID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Template deleted successfully",
	})
}

func (h *TemplateHandler) ListByInstitution(c fiber.Ctx) error {
	institutionID, err := bson.ObjectIDFromHex(c.Params("institutionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid institution id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	templates, err := h.templateService.ListByInstitution(ctx, institutionID)
	if err != nil {
		log.Printf("Failed to list templates for institution %s: %v", institutionID.Hex(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list templates",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"templates": templates,
			"count":     len(templates),
		},
	})
}
