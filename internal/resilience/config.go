package resilience

import (
	"time"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
)

// FromOCRConfig derives the retry policy and breaker settings guarding the
// OCR collaborator.
func FromOCRConfig(cfg config.OCRConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.InitialBackoff) * time.Millisecond
	}

	breaker := DefaultCircuitBreakerConfig()
	if cfg.FailureLimit > 0 {
		breaker.FailureThreshold = cfg.FailureLimit
	}
	if cfg.ResetTimeoutSec > 0 {
		breaker.ResetTimeout = time.Duration(cfg.ResetTimeoutSec) * time.Second
	}
	// Only service-level failures count toward opening the breaker; a
	// document the OCR engine rejects says nothing about its health.
	breaker.ShouldTrip = serviceFailure
	retry.ShouldRetry = serviceFailure
	return retry, breaker
}

func serviceFailure(err error) bool {
	return IsTransient(err) || IsTimeout(err)
}

// FromImportConfig derives the retry policy for catalog lookups. Only
// transient store errors are retried; a lookup that ran out of time is not.
func FromImportConfig(cfg config.ImportConfig) RetryConfig {
	retry := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		ShouldRetry:    retryableLookup,
	}
	if cfg.LookupAttempts > 0 {
		retry.MaxAttempts = cfg.LookupAttempts
	}
	return retry
}

func retryableLookup(err error) bool {
	return IsTransient(err) && !IsTimeout(err)
}
