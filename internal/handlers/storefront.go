// internal/handlers/storefront.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-backend/internal/services"
	"github.com/javajoker/storefront-backend/internal/utils"
)

// StorefrontHandler serves the public catalog.
type StorefrontHandler struct {
	catalogService *services.CatalogService
	log            *logrus.Logger
}

func NewStorefrontHandler(catalogService *services.CatalogService, log *logrus.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		catalogService: catalogService,
		log:            log,
	}
}

// GET /products
func (h *StorefrontHandler) GetProducts(c *gin.Context) {
	products, err := h.catalogService.AvailableProducts(c.Request.Context())
	h.respond(c, products, err)
}

// GET /products/popular
func (h *StorefrontHandler) GetPopularProducts(c *gin.Context) {
	products, err := h.catalogService.PopularProducts(c.Request.Context())
	h.respond(c, products, err)
}

// GET /products/recent
func (h *StorefrontHandler) GetRecentProducts(c *gin.Context) {
	products, err := h.catalogService.RecentProducts(c.Request.Context())
	h.respond(c, products, err)
}

// GET /products/:id
func (h *StorefrontHandler) GetProduct(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}

	product, err := h.catalogService.AvailableProduct(c.Request.Context(), id)
	if errors.Is(err, services.ErrProductNotFound) {
		utils.NotFoundResponse(c, "product")
		return
	}
	h.respond(c, product, err)
}

func (h *StorefrontHandler) respond(c *gin.Context, data interface{}, err error) {
	if err != nil {
		h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("Catalog query failed")
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, data)
}
