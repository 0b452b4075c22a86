package validator

import (
	"context"
	"errors"

	"github.com/go-playground/validator"

	"github.com/NegroPrimo123/Students-Bot/internal/groups"
	"github.com/NegroPrimo123/Students-Bot/internal/model"
)

var global *validator.Validate

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("course", validateCourse)
	_ = v.RegisterValidation("review_status", validateReviewStatus)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func validateCourse(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(int)
	return ok && groups.ValidCourse(val)
}

func validateReviewStatus(fl validator.FieldLevel) bool {
	s := model.ParticipationStatus(fl.Field().String())
	return s == model.StatusApproved || s == model.StatusRejected
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "oneof", "review_status":
		msg = "Value is not one of the allowed options"
	case "course":
		msg = "Unknown course"
	default:
		msg = ErrUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
