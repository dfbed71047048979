package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network, timeout and non-2xx errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents a host that answered 429 or is still blocked
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePriceNotFound means every extraction strategy was exhausted
	ErrorTypePriceNotFound ErrorType = "price_not_found"
	// ErrorTypeMalformedMarkup represents pages that could not be parsed or matched nothing
	ErrorTypeMalformedMarkup ErrorType = "malformed_markup"
	// ErrorTypeNotification represents alert transport failures
	ErrorTypeNotification ErrorType = "notification"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PriceError is the error reported at an entity boundary
type PriceError struct {
	Type    ErrorType
	Entity  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PriceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Entity, e.Message)
}

// Unwrap returns the underlying error
func (e *PriceError) Unwrap() error {
	return e.Err
}

// New creates a new PriceError
func New(errType ErrorType, entity, message string, err error) *PriceError {
	return &PriceError{
		Type:    errType,
		Entity:  entity,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(entity, message string, err error) *PriceError {
	return New(ErrorTypeFetch, entity, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(entity string, duration time.Duration) *PriceError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, entity, message, nil)
}

// NewPriceNotFound creates a new price-not-found error
func NewPriceNotFound(entity string) *PriceError {
	return New(ErrorTypePriceNotFound, entity, "no extraction strategy produced a price", nil)
}

// NewMalformedMarkup creates a new malformed markup error
func NewMalformedMarkup(entity, message string, err error) *PriceError {
	return New(ErrorTypeMalformedMarkup, entity, message, err)
}

// NewNotification creates a new notification error
func NewNotification(entity, message string, err error) *PriceError {
	return New(ErrorTypeNotification, entity, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PriceError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// Is reports whether any error in err's chain is a PriceError of the given type
func Is(err error, errType ErrorType) bool {
	var pe *PriceError
	if !stderrors.As(err, &pe) {
		return false
	}
	return pe.Type == errType
}

// TypeOf returns the ErrorType of err, or "other" when err is not a PriceError
func TypeOf(err error) ErrorType {
	var pe *PriceError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return "other"
}
