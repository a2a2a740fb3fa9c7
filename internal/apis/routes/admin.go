package routes

import (
	"log"

	"mongolens/internal/di"

	"github.com/gin-gonic/gin"
)

func SetupAdminRoutes(router *gin.Engine) {
	adminHandler, err := di.GetAdminHandler()
	if err != nil {
		log.Fatalf("Failed to get admin handler: %v", err)
	}

	api := router.Group("/api")
	{
		// Connection lifecycle
		api.POST("/connect", adminHandler.Connect)
		api.GET("/status", adminHandler.Status)
		api.POST("/disconnect", adminHandler.Disconnect)

		// Databases and collections
		api.GET("/databases", adminHandler.ListDatabases)
		api.GET("/databases/:db/collections", adminHandler.ListCollections)
		api.POST("/databases/:db/collections", adminHandler.CreateCollection)
		api.DELETE("/databases/:db/collections/:collection", adminHandler.DropCollection)

		// Collection views
		collection := api.Group("/databases/:db/collections/:collection")
		{
			collection.GET("/documents", adminHandler.ListDocuments)
			collection.POST("/documents", adminHandler.CreateDocument)
			collection.GET("/documents/:id", adminHandler.GetDocument)
			collection.PUT("/documents/:id", adminHandler.UpdateDocument)
			collection.DELETE("/documents/:id", adminHandler.DeleteDocument)
			collection.GET("/documents/:id/references", adminHandler.ResolveReferences)
			collection.GET("/schema", adminHandler.GetSchema)
			collection.GET("/indexes", adminHandler.ListIndexes)
		}
	}
}
