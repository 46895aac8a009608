package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"logbook-service/internal/config"
	"logbook-service/internal/database/mongo"
	"logbook-service/internal/events"
	"logbook-service/internal/handlers"
	"logbook-service/internal/repository"
	"logbook-service/internal/service"
	"logbook-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/evolvia", "log", "logbook_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.ServiceConfig

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Logbook Service is healthy")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	repos := repository.Repositories_instance

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repos.RoleRepository.InitializeIndexes(initCtx); err != nil {
		log.Printf("Warning: Failed to initialize role indexes: %v", err)
	}
	if err := repos.EntryRepository.InitializeIndexes(initCtx); err != nil {
		log.Printf("Warning: Failed to initialize entry indexes: %v", err)
	}
	if err := repos.AccessGrantRepository.InitializeIndexes(initCtx); err != nil {
		log.Printf("Warning: Failed to initialize access grant indexes: %v", err)
	}
	if err := repos.VerificationRecordRepository.InitializeIndexes(initCtx); err != nil {
		log.Printf("Warning: Failed to initialize verification record indexes: %v", err)
	}

	// Seed the system roles the grant workflow resolves by name.
	systemRoles := []string{cfg.Logbook.OwnerRoleName, cfg.Logbook.SupervisorRoleName, "Editor", "Viewer"}
	if err := repos.RoleRepository.EnsureSystemRoles(initCtx, systemRoles); err != nil {
		log.Fatalf("Failed to seed system roles: %v", err)
	}
	initCancel()

	// Initialize event publisher
	eventPublisher, err := events.NewEventPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
	}

	// Initialize services
	resolver := service.NewSupervisorResolver(repos.RoleRepository, repos.AccessGrantRepository, cfg.Logbook.SupervisorRoleName)
	verificationService := service.NewVerificationService(repos.VerificationRecordRepository, repos.EntryRepository, resolver, eventPublisher)
	entryService := service.NewEntryService(repos.EntryRepository, repos.TemplateRepository, repos.VerificationRecordRepository, resolver, eventPublisher)
	accessService := service.NewAccessService(repos.AccessGrantRepository, repos.RoleRepository, repos.EntryRepository, repos.VerificationRecordRepository, eventPublisher, cfg.Logbook.SupervisorRoleName)
	templateService := service.NewTemplateService(repos.TemplateRepository, repos.AccessGrantRepository, repos.RoleRepository, repos.TemplateCache, cfg.Logbook.OwnerRoleName)

	// Initialize event consumer feeding the grant watcher
	eventConsumer, err := events.NewEventConsumer(cfg.RabbitMQ.URI, accessService)
	if err != nil {
		log.Printf("Warning: Failed to initialize event consumer: %v", err)
	} else {
		if err := eventConsumer.Start(); err != nil {
			log.Printf("Warning: Failed to start event consumer: %v", err)
			eventConsumer.Close()
		} else {
			log.Println("Successfully started event consumer for access grant events")
			defer eventConsumer.Close()
		}
	}

	// Initialize and register handlers
	templateHandler := handlers.NewTemplateHandler(templateService)
	templateHandler.RegisterRoutes(app)

	entryHandler := handlers.NewEntryHandler(entryService)
	entryHandler.RegisterRoutes(app)

	verificationHandler := handlers.NewVerificationHandler(verificationService)
	verificationHandler.RegisterRoutes(app)

	accessHandler := handlers.NewAccessHandler(accessService)
	accessHandler.RegisterRoutes(app)

	serviceDiscovery, err := discovery.NewServiceRegistry(cfg)
	if err != nil {
		log.Printf("Warning: Failed to create service registry: %v", err)
	} else if err := serviceDiscovery.Register(); err != nil {
		log.Printf("Warning: Failed to register with Consul: %v", err)
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	// Close event publisher
	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}

	// Disconnect from MongoDB
	mongo.DisconnectMongo()

	// Deregister from service discovery
	if serviceDiscovery != nil {
		if err := serviceDiscovery.Deregister(); err != nil {
			log.Printf("Error deregistering from service discovery: %v", err)
		}
	}

	<-doneChan
	log.Println("Server shutdown complete")
}
