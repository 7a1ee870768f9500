package simulation

import (
	"github.com/go-playground/validator/v10"

	"github.com/elimisha/maabara/core"
)

var (
	expLevelTag  = "explevel"
	expLevelText = "invalid experiment level"
)

func init() {
	_ = core.Validate.RegisterValidation(expLevelTag, expLevelValidation)
	core.RegisterCustomTranslation(expLevelTag, expLevelText)
}

// expLevelValidation checks that the provided level is in AllLevels.
func expLevelValidation(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	for _, known := range AllLevels {
		if level == known {
			return true
		}
	}
	return false
}
