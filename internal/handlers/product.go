// internal/handlers/product.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-backend/internal/i18n"
	"github.com/javajoker/storefront-backend/internal/services"
	"github.com/javajoker/storefront-backend/internal/utils"
)

// Multipart parts beyond this stay on disk until read.
const multipartMemory = 8 << 20

type ProductHandler struct {
	productService *services.ProductService
	catalogService *services.CatalogService
	maxUploadSize  int64
	log            *logrus.Logger
}

type AvailabilityRequest struct {
	AvailableForPurchase *bool `json:"available_for_purchase" validate:"required"`
}

func NewProductHandler(productService *services.ProductService, catalogService *services.CatalogService, maxUploadSize int64, log *logrus.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		catalogService: catalogService,
		maxUploadSize:  maxUploadSize,
		log:            log,
	}
}

// GET /admin/products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	rows, total, err := h.catalogService.AdminProducts(c.Request.Context(), params)
	if err != nil {
		h.log.WithError(err).Error("Failed to list admin products")
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(rows, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SuccessResponse(c, product)
}

// POST /admin/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	sub, ok := h.readSubmission(c)
	if !ok {
		return
	}

	product, err := h.productService.Create(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductCreated),
		"product": product,
	})
}

// PUT /admin/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := parseProductID(c)
	if !ok {
		return
	}

	sub, ok := h.readSubmission(c)
	if !ok {
		return
	}

	product, err := h.productService.Update(c.Request.Context(), id, sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductUpdated),
		"product": product,
	})
}

// DELETE /admin/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := parseProductID(c)
	if !ok {
		return
	}

	if err := h.productService.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductDeleted),
	})
}

// PATCH /admin/products/:id/availability
func (h *ProductHandler) SetAvailability(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := parseProductID(c)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.productService.ToggleAvailability(c.Request.Context(), id, *req.AvailableForPurchase)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductAvailability),
		"product": product,
	})
}

// readSubmission flattens a multipart or urlencoded form into a submission.
// Only the first value of each field and the first file of each part is kept.
func (h *ProductHandler) readSubmission(c *gin.Context) (services.FormSubmission, bool) {
	lang := utils.GetLangFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	sub := services.FormSubmission{
		Fields: map[string]string{},
		Files:  map[string]*services.FileUpload{},
	}

	err := c.Request.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = c.Request.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				i18n.T(lang, i18n.KeyFileTooLarge, h.maxUploadSize), nil)
			return sub, false
		}
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyMalformedPayload), err.Error())
		return sub, false
	}

	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			sub.Fields[key] = values[0]
		}
	}

	if form := c.Request.MultipartForm; form != nil {
		for key, headers := range form.File {
			if len(headers) == 0 {
				continue
			}
			upload, err := readFileUpload(headers[0])
			if err != nil {
				utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyMalformedPayload), err.Error())
				return sub, false
			}
			sub.Files[key] = upload
		}
	}

	return sub, true
}

func readFileUpload(header *multipart.FileHeader) (*services.FileUpload, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}

	return &services.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

// writeError maps pipeline errors onto the API envelope.
func (h *ProductHandler) writeError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var validationErr *services.ValidationError
	var persistenceErr *services.PersistenceError
	switch {
	case errors.Is(err, services.ErrMalformedPayload):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyMalformedPayload), nil)
	case errors.As(err, &validationErr):
		utils.ValidationErrorResponse(c, validationErr.Fields)
	case errors.Is(err, services.ErrUploadFailed):
		utils.BadGatewayResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed))
	case errors.Is(err, services.ErrProductNotFound):
		utils.NotFoundResponse(c, "product")
	case errors.Is(err, services.ErrProductHasOrders):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyProductHasOrders))
	case errors.As(err, &persistenceErr):
		utils.InternalErrorResponse(c, i18n.T(lang, i18n.KeyPersistenceFailed))
	default:
		h.log.WithError(err).Error("Unhandled product error")
		utils.InternalErrorResponse(c, "")
	}
}

func parseProductID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
