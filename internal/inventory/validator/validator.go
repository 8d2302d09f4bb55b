package validator

import (
	"errors"
	"fmt"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

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

type InventoryValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewInventoryValidator(log *logger.Logger) *InventoryValidator {
	return &InventoryValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log,
	}
}

func (v *InventoryValidator) ValidateRoom(req *model.CreateRoomRequest) error {
	return v.validateStruct(req)
}

// ValidateHold checks the payload shape and returns the parsed range.
func (v *InventoryValidator) ValidateHold(req *model.HoldRequest) (model.DateRange, error) {
	if err := v.validateStruct(req); err != nil {
		return model.DateRange{}, err
	}

	rng, err := model.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return model.DateRange{}, ValidationErrors{{Field: "StartDate", Message: err.Error()}}
	}
	if !rng.Valid() {
		return model.DateRange{}, ValidationErrors{{Field: "EndDate", Message: "end_date must be after start_date"}}
	}
	return rng, nil
}

func (v *InventoryValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
