package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError is one invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid value so they can be reported together.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Validator checks one configuration section.
type Validator func() ValidationErrors

// Validate runs validators and combines their errors.
func Validate(validators ...Validator) error {
	var all ValidationErrors
	for _, v := range validators {
		all = append(all, v()...)
	}
	if len(all) > 0 {
		return all
	}
	return nil
}

// CollectErrors drops the nil results of individual checks.
func CollectErrors(errs ...*ValidationError) ValidationErrors {
	var result ValidationErrors
	for _, err := range errs {
		if err != nil {
			result = append(result, *err)
		}
	}
	return result
}

func RequireNonEmpty(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

func RequireValidPort(field string, value int) *ValidationError {
	if value < 1 || value > 65535 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("port must be between 1 and 65535, got %d", value)}
	}
	return nil
}

func RequirePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %d", value)}
	}
	return nil
}

func RequireInRange(field string, value, min, max int) *ValidationError {
	if value < min || value > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d, got %d", min, max, value)}
	}
	return nil
}

func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %s", value)}
	}
	return nil
}

func RequireOneOf(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v, got %q", allowed, value)}
}

// RequireURLScheme checks that value parses as a URL with one of schemes.
func RequireURLScheme(field, value string, schemes ...string) *ValidationError {
	u, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("scheme must be one of %v, got %q", schemes, u.Scheme)}
}

// RequirePathPrefix checks that value is an absolute URL path without a trailing slash.
func RequirePathPrefix(field, value string) *ValidationError {
	if !strings.HasPrefix(value, "/") || (len(value) > 1 && strings.HasSuffix(value, "/")) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must start with / and not end with /, got %q", value)}
	}
	return nil
}

// WhenSet runs check only for non-empty values.
func WhenSet(value string, check func() *ValidationError) *ValidationError {
	if value == "" {
		return nil
	}
	return check()
}
