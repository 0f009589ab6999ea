package plan

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"adagency-backoffice/pkg/errutil"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Input is the caller-editable part of a plan. Derived figures are never accepted.
type Input struct {
	PlanName     string          `json:"plan_name" validate:"required,max=255"`
	DailyBudget  decimal.Decimal `json:"daily_budget" validate:"gt=0"`
	DurationDays int             `json:"duration_days" validate:"gte=1,lte=365"`
	ClientPrice  decimal.Decimal `json:"client_price" validate:"gte=0"`
	IsActive     *bool           `json:"is_active"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// money is validated by its float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func validateInput(v *validator.Validate, in Input) error {
	in.PlanName = strings.TrimSpace(in.PlanName)

	err := v.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errutil.BadRequest("invalid plan", err)
	}

	details := make([]errutil.Detail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, errutil.Detail{
			Field:   fieldName(fe.Field()),
			Message: describe(fe),
		})
	}
	return errutil.ValidationFailed("invalid plan", nil, errutil.WithDetails(details...))
}

func fieldName(goName string) string {
	switch goName {
	case "PlanName":
		return "plan_name"
	case "DailyBudget":
		return "daily_budget"
	case "DurationDays":
		return "duration_days"
	case "ClientPrice":
		return "client_price"
	default:
		return strings.ToLower(goName)
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "lte", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	default:
		return "is invalid"
	}
}
