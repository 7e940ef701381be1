// internal/services/product_form.go
package services

import (
	"encoding/json"
	"fmt"
)

// Form field names shared by the normalizer, the schema and the handlers.
const (
	FieldName         = "name"
	FieldDescription  = "description"
	FieldPriceInCents = "priceInCents"
	FieldImage        = "image"
	FieldAvailable    = "availableForPurchase"
	FieldTags         = "tags"
)

// FileUpload is a file part read out of a multipart submission.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// FormSubmission is the flat key/value payload of a product form.
type FormSubmission struct {
	Fields map[string]string
	Files  map[string]*FileUpload
}

// NormalizedForm is a submission with its JSON-encoded fields decoded.
// Values keep whatever JSON type the client sent; typing is the schema's job.
type NormalizedForm struct {
	Values map[string]any
	Files  map[string]*FileUpload
}

// jsonFields are sent as JSON text by the admin form.
var jsonFields = []string{FieldTags, FieldAvailable}

// NormalizeForm decodes the JSON-encoded fields of sub into a fresh record.
// The submission itself is left untouched.
func NormalizeForm(sub FormSubmission) (NormalizedForm, error) {
	values := make(map[string]any, len(sub.Fields))
	for k, v := range sub.Fields {
		values[k] = v
	}

	for _, field := range jsonFields {
		raw, ok := sub.Fields[field]
		if !ok {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return NormalizedForm{}, fmt.Errorf("%w: field %q: %v", ErrMalformedPayload, field, err)
		}
		values[field] = decoded
	}

	files := make(map[string]*FileUpload, len(sub.Files))
	for k, f := range sub.Files {
		files[k] = f
	}

	return NormalizedForm{Values: values, Files: files}, nil
}
