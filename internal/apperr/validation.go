package apperr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator reporting fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FromValidation turns validator errors into a ShapeError with one violation per field.
// Other errors are returned unchanged.
func FromValidation(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	shapeErr := &ShapeError{}
	for _, fe := range validationErrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		message := "failed " + fe.Tag()
		if fe.Param() != "" {
			message += "=" + fe.Param()
		}
		shapeErr.Add("request."+fe.Tag(), path, message)
	}
	return shapeErr.OrNil()
}
