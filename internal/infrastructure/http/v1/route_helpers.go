package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
// Reads are open to any authenticated user, writes pass through write.
//
// Usage:
//
//	repo := catalog_repo.NewProjectRepo(txManager)
//	service := projects.NewService(repo, txManager)
//	handler := handlers.NewProjectHandler(base, service, loc)
//	RegisterCatalogRoutes(api.Group("/projects"), handler, requireManager())
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, write gin.HandlerFunc) {
	group.GET("", handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", write, handler.Update)
	group.DELETE("/:id", write, handler.Delete)
}
