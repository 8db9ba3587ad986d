package service

import (
	"errors"
	"math"
	"strings"
	"unicode"

	"reservation-service/internal/apperror"
	"reservation-service/internal/models"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateSpecialDay, SpecialDayInput{})
	v.RegisterStructValidation(validateDepositPolicy, DepositPolicyInput{})
	return v
}

func validateSpecialDay(sl validator.StructLevel) {
	in := sl.Current().Interface().(SpecialDayInput)
	if in.Date.IsZero() {
		sl.ReportError(in.Date, "Date", "Date", "required", "")
	}
	switch in.Kind {
	case models.SpecialDayBlocked:
		if in.Multiplier != nil || in.FixedPriceCents != nil {
			sl.ReportError(in.Kind, "Kind", "Kind", "blocked_without_price", "")
		}
	case models.SpecialDaySpecialRate:
		if (in.Multiplier == nil) == (in.FixedPriceCents == nil) {
			sl.ReportError(in.Kind, "Kind", "Kind", "exactly_one_price", "")
		}
	}
}

func validateDepositPolicy(sl validator.StructLevel) {
	in := sl.Current().Interface().(DepositPolicyInput)
	switch in.Type {
	case models.DepositPercent:
		if in.Value > 100 {
			sl.ReportError(in.Value, "Value", "Value", "lte", "100")
		}
	case models.DepositFixed:
		if in.Value != math.Trunc(in.Value) {
			sl.ReportError(in.Value, "Value", "Value", "integer", "")
		}
	}
}

// validationError переводит ошибки validator в VALIDATION_ERROR с разбивкой по полям.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(apperror.CodeValidation, "invalid input", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields[snakeCase(fe.Field())] = msg
	}
	return apperror.Validation(fields)
}

func snakeCase(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = true
	}
	return b.String()
}
