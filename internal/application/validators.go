package application

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

// RegisterLayoutValidators registers the custom validation tags used by
// Layout with the given validator instance.
// RegisterLayoutValidators returns an error if any registration fails.
func RegisterLayoutValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"marker": validateMarker,
		"glob":   validateGlob,
		"regexp": validateRegexp,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateMarker accepts a single, non-special path element. Markers are
// compared against directory entry names, so separators can never match.
func validateMarker(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" || value == "." || value == ".." {
		return false
	}
	return !strings.ContainsAny(value, `/\`)
}

// validateGlob accepts doublestar patterns that match a single path
// element.
func validateGlob(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return doublestar.ValidatePattern(value) && !strings.Contains(value, "/")
}

// validateRegexp accepts any pattern accepted by the regexp package.
func validateRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}
