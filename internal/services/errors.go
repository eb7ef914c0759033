package services

import "errors"

var (
	// ErrInvalidInput indicates the caller supplied invalid or unresolvable input.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrForbidden indicates the principal holds no membership granting access.
	ErrForbidden = errors.New("services: forbidden")
	// ErrNotFound indicates the requested entity does not exist or is out of scope.
	ErrNotFound = errors.New("services: not found")
	// ErrConflict indicates the entity is not in a state that permits the operation.
	ErrConflict = errors.New("services: conflict")
	// ErrProviderInactive indicates the target provider cannot accept orders.
	ErrProviderInactive = errors.New("services: provider not active")
	// ErrPaymentUnavailable indicates the payment provider rejected or could not
	// service the request.
	ErrPaymentUnavailable = errors.New("services: payment provider unavailable")
	// ErrWebhookSignature indicates webhook signature verification failed.
	ErrWebhookSignature = errors.New("services: webhook signature verification failed")
)
