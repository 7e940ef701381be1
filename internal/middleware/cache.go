// internal/middleware/cache.go
package middleware

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/storefront-backend/internal/services"
)

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CacheView serves GET responses for the view named by viewID from cache and
// stores successful misses. Variants of a view are told apart by query string
// and language.
func CacheView(cache *services.ViewCache, viewID func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		view := viewID(c)
		variant := c.GetString("lang") + "|" + c.Request.URL.RawQuery

		if body, ok := cache.Get(view, variant); ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		gen := cache.Generation(view)
		w := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Header("X-Cache", "MISS")
		c.Next()

		if w.Status() == http.StatusOK {
			cache.Set(view, variant, gen, w.body.Bytes())
		}
	}
}

// StaticView names a view that does not depend on the request.
func StaticView(view string) func(c *gin.Context) string {
	return func(*gin.Context) string { return view }
}
