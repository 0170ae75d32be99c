// Package validation registers the record field validators with go-playground/validator:
// htmlcolor, cmyk, year and pagerange. Messages are kept next to the tags so forms
// and JSON binding report the same text.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fiee/dorsale/internal/colors"
	"github.com/go-playground/validator/v10"
)

// Messages maps custom tags to user-facing error text.
var Messages = map[string]string{
	"htmlcolor": "This is an invalid color code. It must be a html hex color code e.g. #000000",
	"cmyk":      "This is not a valid CMYK color code. Please use percent values e.g. 0,100,100,0",
	"year":      "This is not a valid year (between 1900 and 2100).",
	"pagerange": "This is not a valid page range (divisible by 4).",
}

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		if err := Register(instance); err != nil {
			panic(err)
		}
	})
	return instance
}

// Register adds the custom tags to v, e.g. gin's binding engine.
func Register(v *validator.Validate) error {
	for tag, fn := range map[string]validator.Func{
		"htmlcolor": isHTMLColor,
		"cmyk":      isCMYK,
		"year":      isYear,
		"pagerange": isPageRange,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}
	return nil
}

func isHTMLColor(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || colors.IsHTMLColor(s)
}

func isCMYK(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || colors.IsCMYK(s)
}

// IsYear reports whether v is an integer year in 1900..2099.
func IsYear(v string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	return err == nil && n >= 1900 && n < 2100
}

// IsPageRange reports whether v is empty or a page count divisible by 4.
func IsPageRange(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n%4 == 0
}

func isYear(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.CanInt() {
		n := f.Int()
		return n == 0 || (n >= 1900 && n < 2100)
	}
	s := f.String()
	return s == "" || IsYear(s)
}

func isPageRange(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.CanInt() {
		return f.Int()%4 == 0
	}
	return IsPageRange(f.String())
}

// Message renders a validator.FieldError as text for users.
func Message(fe validator.FieldError) string {
	if m, ok := Messages[fe.Tag()]; ok {
		return m
	}
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return "Select a valid choice."
	}
	return fmt.Sprintf("Failed on the %q check.", fe.Tag())
}

// Var validates a single value against tags and returns user-facing messages.
func Var(value any, tags string) []string {
	if tags == "" {
		return nil
	}
	err := Validator().Var(value, tags)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, len(errs))
	for i, fe := range errs {
		out[i] = Message(fe)
	}
	return out
}
