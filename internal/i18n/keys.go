// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"

	// Products
	KeyProductCreated      = "product.created"
	KeyProductUpdated      = "product.updated"
	KeyProductDeleted      = "product.deleted"
	KeyProductNotFound     = "product.not_found"
	KeyProductHasOrders    = "product.has_orders"
	KeyProductAvailability = "product.availability_updated"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyMalformedPayload  = "validation.malformed_payload"

	// File Upload
	KeyFileUploadFailed = "file.upload_failed"
	KeyFileTooLarge     = "file.too_large"

	// Persistence
	KeyPersistenceFailed = "persistence.failed"

	// Rate limiting
	KeyRateLimited = "rate.limited"
)
