// Package schema validates payloads crossing the backend boundary.
package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// Validator checks struct payloads against their `validate` tags.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns an error describing every failed constraint of event.
func (v *Validator) Validate(event any) error {
	if err := v.validate.Struct(event); err != nil {
		log.Debug().Err(err).Str("payload", fmt.Sprintf("%T", event)).Msg("schema validation failed")
		return fmt.Errorf("invalid %T: %w", event, err)
	}
	return nil
}
