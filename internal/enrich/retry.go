package enrich

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// retryConfig holds the parameters for the bounded back-off strategy
// applied to individual catalog lookups.
type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
}

// do executes fn with exponential back-off. ErrAuth is permanent and
// returned immediately without further attempts.
func (r retryConfig) do(operationName string, fn func() error) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrAuth) {
			return lastErr
		}

		if attempt < r.maxAttempts {
			log.Printf("%s failed (attempt %d/%d): %v - retrying in %v",
				operationName, attempt, r.maxAttempts, lastErr, delay)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, r.maxAttempts, lastErr)
}
