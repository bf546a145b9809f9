package validator

import (
	"log"
	"reflect"

	"flulance/internal/models"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules registers the enum rules backed by models/statuses.go.
// Empty values pass; presence is the job of 'required'.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("is-job-category", enumRule(func(s string) bool { return models.JobCategory(s).IsValid() }))
	mustRegister("is-platform", enumRule(func(s string) bool { return models.Platform(s).IsValid() }))
	mustRegister("is-job-status", enumRule(func(s string) bool { return models.JobStatus(s).IsValid() }))
	mustRegister("is-match-status", enumRule(validateMatchStatus))
	mustRegister("positive-decimal", validatePositiveDecimal)
}

// validatePositiveDecimal accepts integer kinds (models.Money) above zero.
func validatePositiveDecimal(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() > 0
	default:
		return false
	}
}

func enumRule(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return valid(value)
	}
}

func validateMatchStatus(value string) bool {
	switch models.MatchStatus(value) {
	case models.MatchStatusActive, models.MatchStatusCompleted:
		return true
	default:
		return false
	}
}
