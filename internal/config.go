package internal

import (
	"fmt"
	"time"

	"chat-relay/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Timings groups the liveness knobs a server must keep coherent: the
// heartbeat must fire well inside the threshold or every healthy client
// would look dead.
type Timings struct {
	LivenessThreshold time.Duration `validate:"required,gt=0"`
	HeartbeatInterval time.Duration `validate:"required,gt=0"`
	ReadIdleWait      time.Duration `validate:"required,gt=0"`
}

func (t Timings) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid timings: %w", err)
	}
	if t.HeartbeatInterval >= t.LivenessThreshold {
		return errors.ErrInvalidTimings
	}
	return nil
}

// Port checks a TCP port is usable.
func Port(p int) error {
	if err := validate.Var(p, "min=1,max=65535"); err != nil {
		return fmt.Errorf("invalid port %d: %w", p, err)
	}
	return nil
}

// CensorRune parses the single-character replacement used by moderation.
func CensorRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSOR_CHARACTER must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
