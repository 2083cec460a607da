package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"khoomi-api-io/checkout/pkg/models"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// InputValidationError names the request field that failed and the rule
// it broke.
type InputValidationError struct {
	Message string `json:"message"`
	Field   string `json:"field"`
	Tag     string `json:"tag"`
}

func (err *InputValidationError) Error() string {
	return err.Message
}

var bdMobilePattern = regexp.MustCompile(`^(?:\+?88)?01[3-9]\d{8}$`)

// New returns a validator that reports JSON field names and knows the
// checkout rules.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v.RegisterValidation("notundefined", notUndefined))
	mustRegister(v.RegisterValidation("bdmobile", bdMobile))
	v.RegisterStructValidation(addressRegion, models.Address{})
	return v
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// notUndefined rejects blank and "undefined"/"null" strings; an empty value
// is left to the required tag.
func notUndefined(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	trimmed := strings.ToLower(strings.TrimSpace(value))
	return trimmed != "" && trimmed != "undefined" && trimmed != "null"
}

func bdMobile(fl validator.FieldLevel) bool {
	mobile := strings.NewReplacer(" ", "", "-", "").Replace(fl.Field().String())
	return bdMobilePattern.MatchString(mobile)
}

func addressRegion(sl validator.StructLevel) {
	addr := sl.Current().Interface().(models.Address)
	if addr.HasAdministrativeRegion() || addr.HasCityRegion() {
		return
	}

	admin := []struct{ json, name, value string }{
		{"division", "Division", addr.Division},
		{"district", "District", addr.District},
		{"upazilla", "Upazilla", addr.Upazilla},
	}
	city := []struct{ json, name, value string }{
		{"city", "City", addr.City},
		{"zone", "Zone", addr.Zone},
		{"area", "Area", addr.Area},
	}

	group := admin
	if addr.City != "" || addr.Zone != "" || addr.Area != "" {
		if addr.Division == "" && addr.District == "" && addr.Upazilla == "" {
			group = city
		}
	}
	for _, f := range group {
		if f.value == "" {
			sl.ReportError(f.value, f.json, f.name, "region", "")
			return
		}
	}
}

// Translate converts validator errors into an *InputValidationError for the
// first failing field. Other errors are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return &InputValidationError{
		Message: message(fe),
		Field:   fe.Field(),
		Tag:     fe.Tag(),
	}
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notundefined":
		return fmt.Sprintf("%s must not be blank or undefined", field)
	case "bdmobile":
		return fmt.Sprintf("%s must be a valid Bangladeshi mobile number", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "region":
		return fmt.Sprintf("%s is required to complete the delivery region", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed the %s check", field, fe.Tag())
}

// Required returns an InputValidationError for a missing field outside a
// struct, such as a path parameter.
func Required(field string) error {
	return &InputValidationError{
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
		Tag:     "required",
	}
}
