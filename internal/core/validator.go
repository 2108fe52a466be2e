package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"growcycle/internal/types"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the tags growcycle requests
// use. Field names in errors follow the json tag.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator and registers the custom tags:
//   - rfc3339: a string parseable by time.RFC3339
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("rfc3339", validateRFC3339); err != nil {
		logger.Error("failed to register rfc3339 validator", "error", err)
	}
	return &Validator{validate: v, logger: logger}
}

func validateRFC3339(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// tagCodes gives a tag its own error code when it is the only failure.
var tagCodes = map[string]types.ErrorCode{
	"rfc3339": types.ErrCodeValidationReferenceTime,
}

// ValidateStruct checks s against its validate tags. A failure is returned
// as validation_invalid_request with one entry per field under
// details["errors"], unless the single failing tag has a code in tagCodes.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: messageFor(fe),
		})
	}
	code := types.ErrCodeValidationInvalidRequest
	if len(fields) == 1 {
		if c, ok := tagCodes[fields[0].Code]; ok {
			code = c
		}
	}
	return types.NewAppErrorWithDetails(code,
		"request validation failed", err, map[string]any{"errors": fields})
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "lte":
		return fe.Field() + " must be at most " + fe.Param()
	case "rfc3339":
		return fe.Field() + " must be an RFC 3339 timestamp"
	default:
		return fe.Field() + " is invalid"
	}
}
