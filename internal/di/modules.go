package di

import (
	"log"
	"time"

	"mongolens/config"
	"mongolens/internal/apis/handlers"
	"mongolens/internal/services"
	"mongolens/pkg/dbmanager"

	"go.uber.org/dig"
)

var DiContainer *dig.Container

func Initialize() {
	DiContainer = dig.New()

	// Provide the connection manager
	if err := DiContainer.Provide(func() *dbmanager.Manager {
		opts := dbmanager.DefaultManagerOptions()
		opts.ConnectTimeout = time.Duration(config.Env.ConnectTimeoutSeconds) * time.Second
		return dbmanager.NewManager(opts)
	}); err != nil {
		log.Fatalf("Failed to provide connection manager: %v", err)
	}

	// Provide the admin service
	if err := DiContainer.Provide(func(manager *dbmanager.Manager) services.AdminService {
		referenceOpts := dbmanager.ReferenceOptions{
			MaxProbes: config.Env.MaxReferenceProbes,
			MaxDepth:  config.Env.MaxReferenceDepth,
		}
		return services.NewAdminService(manager, config.Env.MaxPageSize, config.Env.SchemaSampleSize, referenceOpts)
	}); err != nil {
		log.Fatalf("Failed to provide admin service: %v", err)
	}

	// Provide the admin handler
	if err := DiContainer.Provide(func(adminService services.AdminService) *handlers.AdminHandler {
		return handlers.NewAdminHandler(adminService)
	}); err != nil {
		log.Fatalf("Failed to provide admin handler: %v", err)
	}
}

// GetAdminHandler retrieves the AdminHandler from the DI container
func GetAdminHandler() (*handlers.AdminHandler, error) {
	var handler *handlers.AdminHandler
	err := DiContainer.Invoke(func(h *handlers.AdminHandler) {
		handler = h
	})
	if err != nil {
		return nil, err
	}
	return handler, nil
}
