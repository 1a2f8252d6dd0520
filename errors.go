package courier

import "errors"

var (
	// Registration errors — fatal at process start.
	ErrDuplicateRegistration = errors.New("courier: handler name already registered")
	ErrInvalidProxyMapping   = errors.New("courier: invalid proxy mapping")

	// Envelope errors.
	ErrEmptyHandlerName = errors.New("courier: envelope handler name is empty")
	ErrInvalidEnvelope  = errors.New("courier: invalid envelope")

	// Consumer-side resolution errors.
	ErrHandlerNotFound = errors.New("courier: no handler registered for name")

	// Transport errors.
	ErrTransport        = errors.New("courier: transport failure")
	ErrTransportClosed  = errors.New("courier: transport closed")
	ErrDoubleResolution = errors.New("courier: delivery handle resolved twice")

	// DLQ errors.
	ErrDLQEntryNotFound = errors.New("courier: dlq entry not found")
)
