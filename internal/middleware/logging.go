// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/utils"
)

// Request bodies larger than this are not copied into the audit log.
const maxAuditBody = 64 << 10

// AuditLogMiddleware records every mutating request in audit_logs. Only JSON
// bodies are captured; multipart uploads are recorded without their payload.
func AuditLogMiddleware(db *gorm.DB, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for reads and health checks
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead ||
			strings.HasSuffix(c.Request.URL.Path, "/health") {
			c.Next()
			return
		}

		var requestData map[string]interface{}
		if isJSON(c.Request) && c.Request.Body != nil && c.Request.ContentLength <= maxAuditBody {
			requestBody, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			if len(requestBody) > 0 {
				json.Unmarshal(requestBody, &requestData)
			}
		}
		// Credentials never reach the audit table.
		delete(requestData, "password")

		c.Next()

		auditLog := &models.AuditLog{
			UserID:       userIDFromContext(c),
			Action:       c.Request.Method + " " + c.FullPath(),
			ResourceType: extractResourceType(c.Request.URL.Path),
			Status:       c.Writer.Status(),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			NewValues:    models.JSONB(requestData),
		}

		// Extract resource ID from URL if present
		if resourceID := extractResourceID(c.Request.URL.Path); resourceID != "" {
			if parsed, err := uuid.Parse(resourceID); err == nil {
				auditLog.ResourceID = &parsed
			}
		}

		if err := db.WithContext(c.Request.Context()).Create(auditLog).Error; err != nil {
			log.WithError(err).Error("Failed to create audit log")
		}
	}
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func userIDFromContext(c *gin.Context) *uuid.UUID {
	uid, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return nil
	}
	parsed, err := uuid.Parse(uid)
	if err != nil {
		return nil
	}
	return &parsed
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 1 && parts[0] == "v1" {
		parts = parts[1:]
	}
	if len(parts) >= 2 && parts[0] == "admin" {
		return parts[1]
	}
	if len(parts) >= 1 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			return part
		}
	}
	return ""
}

// RequestLogger logs one line per request through log.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})
		if userID, ok := c.Get("user_id"); ok {
			entry = entry.WithField("user_id", userID)
		}
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("Request processed")
			return
		}
		entry.Info("Request processed")
	}
}
