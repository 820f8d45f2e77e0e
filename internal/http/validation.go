package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// deskCodePattern matches codes such as "HQ-1-A-001".
var deskCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("deskcode", func(fl validator.FieldLevel) bool {
		return deskCodePattern.MatchString(fl.Field().String())
	})
	return v
}

// bindJSON decodes the request body into dst and validates its tags. It
// renders the 400 response itself and reports whether the handler may go on.
func bindJSON(c *gin.Context, v *validator.Validate, r responder, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		r.writeError(c, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return false
	}
	if err := v.Struct(dst); err != nil {
		r.writeJSON(c, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "validation failed",
			Errors:    fieldErrors(err),
		})
		return false
	}
	return true
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = describeFieldError(fe)
	}
	return out
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "deskcode":
		return fmt.Sprintf("%s must be a desk code of letters, digits, '-' or '_'", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must match the layout %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s rule", fe.Field(), fe.Tag())
	}
}
