package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	healthStatusOK        = "ok"
	healthStatusUnhealthy = "unhealthy"
)

type HealthChecker interface {
	Health() error
}

// ServiceInfo is reported by GET /.
type ServiceInfo struct {
	Name    string `json:"name" example:"product-catalog"`
	Version string `json:"version" example:"1.0.0"`
}

func RegisterRoutes(router *gin.Engine, handler *Handler, checker HealthChecker, info ServiceInfo) {
	router.GET("/", rootHandler(info))

	products := router.Group("/products")
	products.POST("", handler.CreateProduct)
	products.GET("", handler.ListProducts)
	products.GET("/:id", handler.GetProduct)
	products.PUT("/:id", handler.UpdateProduct)
	products.DELETE("/:id", handler.DeleteProduct)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := checker.Health(); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": healthStatusUnhealthy})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": healthStatusOK})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// rootHandler godoc
// @Summary      Service metadata
// @Tags         meta
// @Produce      json
// @Success      200  {object}  ServiceInfo
// @Router       / [get]
func rootHandler(info ServiceInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	}
}
