package products

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const (
	categoryTag = "category"
	notBlankTag = "notblank"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation(notBlankTag, validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", notBlankTag, err))
	}
	if err := v.RegisterValidation(categoryTag, func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).valid()
	}); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", categoryTag, err))
	}
	return v
}

// Validate checks the field rules every stored product must satisfy.
func (p Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return fmt.Errorf("validate product: %w", err)
	}
	return checkPrice(p.Price)
}

func fieldError(fe validator.FieldError) *ValidationError {
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case notBlankTag:
		return invalid(fe.Field(), "must not be blank")
	case "max":
		return invalid(fe.Field(), fmt.Sprintf("must be at most %s characters", fe.Param()))
	case categoryTag:
		return invalid(fe.Field(), "must be an upper-case tag like FOOD")
	default:
		return invalid(fe.Field(), fmt.Sprintf("failed %q rule", fe.Tag()))
	}
}
