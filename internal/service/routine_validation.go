package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
)

// NewValidator returns a validator with the routine rules registered:
// weekday (Monday..Friday, any case), clock (HH:MM) and clockafter=<Field>.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	RegisterRoutineValidations(v)
	return v
}

// RegisterRoutineValidations adds the routine tags to an existing validator.
func RegisterRoutineValidations(v *validator.Validate) {
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseWeekday(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := parseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clockafter", func(fl validator.FieldLevel) bool {
		end, err := parseClock(fl.Field().String())
		if err != nil {
			return false
		}
		other := fl.Parent().FieldByName(fl.Param())
		if !other.IsValid() || other.Kind() != reflect.String {
			return false
		}
		start, err := parseClock(other.String())
		if err != nil {
			// reported by the clock rule on the other field
			return true
		}
		return end > start
	})
}

func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	details := make([]dto.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	appErr := appErrors.WithDetails(appErrors.ErrValidation, message, details)
	appErr.Err = err
	return appErr
}
