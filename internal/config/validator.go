// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Load` calls `validateStruct` after it unmarshals the merged Koanf tree
// and applies defaults.  Any failure aborts startup.
//
// Besides the built-in rules (`required`, `oneof`, `hostname_port`,
// `timezone`, `required_if`) one custom rule is registered:
//
//   • cronspec – the value parses as a standard five-field cron spec, the
//     same parser the scheduler uses.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	_ = val.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return val
}

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
