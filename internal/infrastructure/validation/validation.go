package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/ports"
)

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New builds the request validator with the domain tags
// hhmm, weekday, priority and taskstatus.
func New() (*CustomValidator, error) {
	v := validator.New()

	// report json field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validations := map[string]validator.Func{
		"hhmm": func(fl validator.FieldLevel) bool {
			_, err := entities.ParseClock(fl.Field().String())
			return err == nil
		},
		"weekday": func(fl validator.FieldLevel) bool {
			return entities.IsWeekday(fl.Field().String())
		},
		"priority": func(fl validator.FieldLevel) bool {
			return entities.Priority(fl.Field().String()).IsValid()
		},
		"taskstatus": func(fl validator.FieldLevel) bool {
			return entities.TaskStatus(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", tag, err)
		}
	}

	return &CustomValidator{validator: v}, nil
}

var _ ports.Validator = (*CustomValidator)(nil)
