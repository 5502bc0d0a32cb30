package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// Константы валидации
const (
	MaxDescriptionLength = 1000
	MaxAddressLength     = 300
	MaxNotesLength       = 1000
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	enums := map[string]map[string]struct{}{
		"waste_type":      models.ValidWasteTypes,
		"report_category": models.ValidCategories,
		"severity":        models.ValidSeverities,
		"quantity":        models.ValidQuantities,
		"facility_type":   models.ValidFacilityTypes,
	}
	for tag, allowed := range enums {
		allowed := allowed // per-iteration copy; go.mod targets Go 1.21 loop semantics
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			_, ok := allowed[fl.Field().String()]
			return ok
		})
	}
	return v
}

// Struct проверяет структуру по тегам validate и возвращает VALIDATION_ERROR
// с перечнем полей в Details.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные данные запроса")
	}

	fields := make(map[string]any, len(fieldErrs))
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := describe(fe)
		fields[fe.Field()] = msg
		messages = append(messages, fe.Field()+": "+msg)
	}
	return apperror.New(apperror.ErrCodeValidation, strings.Join(messages, "; ")).
		WithDetails(map[string]any{"fields": fields})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "min":
		return fmt.Sprintf("значение меньше допустимого (%s)", fe.Param())
	case "max":
		return fmt.Sprintf("значение больше допустимого (%s)", fe.Param())
	case "gt":
		return fmt.Sprintf("значение должно быть больше %s", fe.Param())
	case "oneof":
		return "допустимые значения: " + fe.Param()
	case "uuid":
		return "ожидается UUID"
	case "email":
		return "некорректный email"
	case "url":
		return "некорректный адрес сайта"
	case "waste_type", "report_category", "severity", "quantity", "facility_type":
		return fmt.Sprintf("неизвестное значение %q", fe.Value())
	}
	return "некорректное значение"
}

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Newf(apperror.ErrCodeValidation, "%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return apperror.Newf(apperror.ErrCodeValidation, "%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}
