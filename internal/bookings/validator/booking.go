package validator

import (
	"errors"
	"fmt"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxIdempotencyKeyLength = 128

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("room_id", validateRoomID); err != nil {
		log.Fatal("Failed to register 'room_id' validator",
			"error", err,
		)
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// validateRoomID rejects ids that could not be used as a path segment.
func validateRoomID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" {
		return true
	}
	return !strings.ContainsAny(id, "/?# \t\n")
}

// ValidateCreate checks the payload shape and returns the parsed date range.
// Calendar rules such as booking windows are enforced by the saga.
func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) (model.DateRange, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return model.DateRange{}, v.translateValidationErrors(validationErrs)
		}
		return model.DateRange{}, err
	}

	rng, err := model.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return model.DateRange{}, ValidationErrors{
			ValidationError{
				Field:   "StartDate",
				Message: err.Error(),
			},
		}
	}
	return rng, nil
}

func (v *BookingValidator) ValidateIdempotencyKey(key string) error {
	if len(key) > maxIdempotencyKeyLength {
		return ValidationErrors{
			ValidationError{
				Field:   "Idempotency-Key",
				Message: fmt.Sprintf("Idempotency-Key must be at most %d characters", maxIdempotencyKeyLength),
			},
		}
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in %s format", err.Field(), err.Param())
		case "room_id":
			message = fmt.Sprintf("%s contains invalid characters", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
