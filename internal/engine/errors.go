package engine

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError is the platform's backpressure signal. Delivery pauses and
// resumes from its checkpoint after the advised wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimit unwraps err into a RateLimitError if it carries one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
