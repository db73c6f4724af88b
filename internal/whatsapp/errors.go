package whatsapp

import "fmt"

// DeliveryErrorKind classifies a failed send.
type DeliveryErrorKind string

const (
	RateLimited    DeliveryErrorKind = "rate_limited"
	AuthExpired    DeliveryErrorKind = "auth_expired"
	NetworkFailure DeliveryErrorKind = "network_failure"
)

type DeliveryError struct {
	Kind DeliveryErrorKind
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("whatsapp: delivery failed (%s)", e.Kind)
	}
	return fmt.Sprintf("whatsapp: delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
