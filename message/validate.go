package message

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct constraints of m.
func Validate(m Message) error {
	if m == nil {
		return fmt.Errorf("validate message: nil message")
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid %s: %w", m.Kind(), err)
	}
	return nil
}
