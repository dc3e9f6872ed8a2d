// Package validate checks request payloads before they reach the services.
// It wraps go-playground/validator with the field rules of the admin API and
// turns failures into VALIDATION_FAILED errors keyed by JSON field name.
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Validator validates request structs tagged with `validate:"..."`.
//
// Besides the built-in rules it understands:
//
//	username  letters, digits and underscore
//	slug      lowercase letters, digits and underscore, after trimming and lowercasing
//	entityid  an id in the format of the active store
type Validator struct {
	v *validator.Validate
}

// New returns a Validator. validID decides what the entityid rule accepts.
func New(validID func(string) bool) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(model.NormalizeKey(fl.Field().String()))
	})
	v.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		return validID(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates s and returns a VALIDATION_FAILED error listing every
// offending field, or nil.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "validation could not run")
	}
	details := make(map[string]interface{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = message(fe)
	}
	return apperrors.ValidationFailed(details)
}

// ID checks a single path or query id.
func (v *Validator) ID(field, value string) error {
	if err := v.v.Var(value, "required,entityid"); err != nil {
		return apperrors.InvalidID(field, value)
	}
	return nil
}

// fieldPath strips the struct name from the namespace: "createRoleRequest.permissions[1]" -> "permissions[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "username":
		return "may only contain letters, numbers and underscores"
	case "slug":
		return "may only contain lowercase letters, numbers and underscores"
	case "entityid":
		return "must be a valid id"
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}
