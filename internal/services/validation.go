package services

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Field rules shared by every product operation. Request structs refer to them by alias.
const (
	ruleName     = "product_name"
	rulePrice    = "product_price"
	ruleCategory = "product_category"
	ruleQuantity = "product_quantity"
)

// fieldMessages maps JSON field names to the message reported when the field is invalid.
var fieldMessages = map[string]string{
	"name":        "Product name is required and must be a non-empty string.",
	"newName":     "New product name must be a non-empty string.",
	"description": "Description must be a string if provided.",
	"price":       "Price must be a non-negative number.",
	"category":    "Category is required and must be a non-empty string.",
	"quantity":    "Quantity must be a non-negative integer.",
}

// maxQuantity is the largest integer a JSON number carries exactly (2^53-1).
const maxQuantity = "9007199254740991"

const invalidBodyMessage = "Request body must be a valid JSON object."

// ValidationError reports invalid input. Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so errors line up with fieldMessages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("whole", isWhole); err != nil {
		panic(err)
	}

	v.RegisterAlias(ruleName, "required,notblank")
	v.RegisterAlias(rulePrice, "required,gte=0")
	v.RegisterAlias(ruleCategory, "required,notblank")
	v.RegisterAlias(ruleQuantity, "required,gte=0,lte="+maxQuantity+",whole")
	return v
}

// isWhole accepts numbers without a fractional part.
func isWhole(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		f := field.Float()
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// validateStruct runs the rule set over a request and returns the first failure.
func (s *ProductService) validateStruct(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return newFieldError(fieldErrs[0].Field())
	}
	return errors.Wrap(err, "validate request")
}

// validateName checks a name given outside a request body, e.g. in the query string.
func (s *ProductService) validateName(name string) error {
	if err := s.validate.Var(name, ruleName); err != nil {
		return newFieldError("name")
	}
	return nil
}

func newFieldError(field string) *ValidationError {
	msg, ok := fieldMessages[field]
	if !ok {
		msg = "Field '" + field + "' is invalid."
	}
	return &ValidationError{Field: field, Message: msg}
}

// BodyError converts a request body decoding failure into a ValidationError.
// Type mismatches are reported against the offending field.
func BodyError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return newFieldError(typeErr.Field)
	}
	return &ValidationError{Message: invalidBodyMessage}
}
