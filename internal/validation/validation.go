package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^\+\d{1,15}$`)

// New returns a validator with the "phone" and "past_date" rules registered.
// Field names in errors are taken from json tags.
func New() *validator.Validate {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	// past_date accepts YYYY-MM-DD strictly before today.
	_ = v.RegisterValidation("past_date", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		y, m, day := now().Date()
		return d.Before(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
	})

	return v
}

// Fields flattens validator errors into field -> failed rule. It returns nil
// for errors that did not come from the validator.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return fields
}
