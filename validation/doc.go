// Package validation checks operator parameters and configuration structs.
//
// It supports struct tag validation (using the validator library) for
// configuration sections and programmatic validation with error collection
// for builder parameters. Both report failures as configuration errors.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    ErrorPolicy string `validate:"oneof=raise skip"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	err := validation.New().Min("batch.size", size, 1).Validate()
package validation
