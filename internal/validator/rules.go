package validator

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"sprintboard_backend/internal/models"
)

func registerCustomRules(v *validator.Validate) error {
	if err := v.RegisterValidation("notification_type", validateNotificationType); err != nil {
		return err
	}
	return v.RegisterValidation("json_object", validateJSONObject)
}

// validateNotificationType accepts the event categories the platform
// emits, as declared in the models package.
func validateNotificationType(fl validator.FieldLevel) bool {
	return models.IsValidType(fl.Field().String())
}

// validateJSONObject accepts an empty string or a string holding a
// JSON object. Payloads travel over the wire as encoded strings, so
// this is checked at the boundary rather than after storage.
func validateJSONObject(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}
