// internal/services/product_schema.go
package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/storefront-backend/internal/utils"
)

// ImageRequirement selects whether a submission must carry a new image.
type ImageRequirement int

const (
	ImageRequired ImageRequirement = iota
	ImageOptional
)

// ProductInput is a fully validated product submission.
type ProductInput struct {
	Name                 string
	Description          string
	PriceInCents         int
	Image                *FileUpload // nil when the submission keeps the current image
	AvailableForPurchase bool
	Tags                 []string
}

const (
	msgRequired     = "Required"
	msgNameRequired = "Name required."
	msgDescRequired = "Description required."
	msgNotInteger   = "Expected integer, received float"
	msgPriceMin     = "Number must be greater than or equal to 1"
	msgPriceMax     = "Number must be less than or equal to 2147483647"
	msgNotImage     = "File must be an image"
)

func init() {
	utils.Validator().RegisterValidation("whole", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	})
}

// ValidateProductForm checks every field of form and reports all violations
// together. Nothing is returned unless the whole form is valid.
func ValidateProductForm(form NormalizedForm, image ImageRequirement) (*ProductInput, error) {
	v := utils.Validator()
	verr := &ValidationError{}
	input := &ProductInput{}

	input.Name = requiredText(v, verr, form.Values, FieldName, msgNameRequired)
	input.Description = requiredText(v, verr, form.Values, FieldDescription, msgDescRequired)
	input.PriceInCents = price(v, verr, form.Values)
	input.Image = imageFile(v, verr, form.Files, image)

	switch available := form.Values[FieldAvailable].(type) {
	case bool:
		input.AvailableForPurchase = available
	default:
		verr.add(FieldAvailable, typeMessage("boolean", form.Values, FieldAvailable))
	}

	input.Tags = tagList(verr, form.Values)

	if !verr.empty() {
		return nil, verr
	}
	return input, nil
}

func requiredText(v *validator.Validate, verr *ValidationError, values map[string]any, field, message string) string {
	raw, ok := values[field].(string)
	if !ok {
		verr.add(field, typeMessage("string", values, field))
		return ""
	}
	trimmed := strings.TrimSpace(raw)
	if v.Var(trimmed, "min=1") != nil {
		verr.add(field, message)
	}
	return trimmed
}

func price(v *validator.Validate, verr *ValidationError, values map[string]any) int {
	var n float64
	switch raw := values[FieldPriceInCents].(type) {
	case string:
		s := strings.TrimSpace(raw)
		if s == "" {
			n = 0
		} else {
			// Out-of-range literals parse to ±Inf and fail the bounds below.
			parsed, err := strconv.ParseFloat(s, 64)
			if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(parsed) {
				verr.add(FieldPriceInCents, "Expected number, received nan")
				return 0
			}
			n = parsed
		}
	case float64:
		n = raw
	case bool:
		if raw {
			n = 1
		}
	default:
		verr.add(FieldPriceInCents, "Expected number, received nan")
		return 0
	}

	if v.Var(n, "whole") != nil {
		verr.add(FieldPriceInCents, msgNotInteger)
	}
	if v.Var(n, "gte=1") != nil {
		verr.add(FieldPriceInCents, msgPriceMin)
	}
	// price_in_cents is a 32-bit column.
	if v.Var(n, "lte=2147483647") != nil {
		verr.add(FieldPriceInCents, msgPriceMax)
	}
	if math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0
	}
	return int(n)
}

func imageFile(v *validator.Validate, verr *ValidationError, files map[string]*FileUpload, req ImageRequirement) *FileUpload {
	file := files[FieldImage]
	if file == nil {
		if req == ImageRequired {
			verr.add(FieldImage, msgRequired)
		}
		return nil
	}

	if v.Var(file.Size, "gt=0") != nil {
		if req == ImageRequired {
			verr.add(FieldImage, msgRequired)
		}
		return nil
	}
	if v.Var(file.ContentType, "startswith=image/") != nil {
		verr.add(FieldImage, msgNotImage)
		return nil
	}
	return file
}

func tagList(verr *ValidationError, values map[string]any) []string {
	raw, ok := values[FieldTags].([]any)
	if !ok {
		verr.add(FieldTags, typeMessage("array", values, FieldTags))
		return nil
	}

	tags := make([]string, 0, len(raw))
	failed := false
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			verr.add(FieldTags, fmt.Sprintf("Expected string, received %s", jsonType(item)))
			failed = true
			continue
		}
		tags = append(tags, s)
	}
	if failed {
		return nil
	}
	return tags
}

// typeMessage reports a missing field as Required and a mistyped one by
// naming the type that was received.
func typeMessage(expected string, values map[string]any, field string) string {
	value, ok := values[field]
	if !ok {
		return msgRequired
	}
	return fmt.Sprintf("Expected %s, received %s", expected, jsonType(value))
}

func jsonType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return "object"
	}
}
