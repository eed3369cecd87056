package v1

import (
	"github.com/gin-gonic/gin"

	"facturo/internal/infrastructure/http/v1/middleware"
)

// DocumentRouteHandler defines the interface for document handlers.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Convert(c *gin.Context)
	ChangeStatus(c *gin.Context)
	Derived(c *gin.Context)
	Movements(c *gin.Context)
	Print(c *gin.Context)
	History(c *gin.Context)
}

// RegisterDocumentRoutes registers the document routes. Reads are open to
// every role; mutations require a writing role.
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	write := middleware.RequireWrite()

	group.GET("", handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", write, handler.Update)
	group.DELETE("/:id", write, handler.Delete)
	group.POST("/:id/convert", write, handler.Convert)
	group.POST("/:id/status", write, handler.ChangeStatus)
	group.GET("/:id/derived", handler.Derived)
	group.GET("/:id/movements", handler.Movements)
	group.GET("/:id/print", handler.Print)
	group.GET("/:id/history", handler.History)
}
