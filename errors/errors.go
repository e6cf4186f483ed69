package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidRegistration = fmt.Errorf("invalid registration")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidHash         = fmt.Errorf("invalid password hash format")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists   = fmt.Errorf("user already exists")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
	ErrInvalidToken        = fmt.Errorf("invalid or expired token")

	ErrUnboundSender       = fmt.Errorf("sender connection is not bound to an identity")
	ErrInvalidRelayRequest = fmt.Errorf("relay request requires a recipient and a text")
	ErrPersistence         = fmt.Errorf("message persistence failed")

	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrSendBufferFull   = fmt.Errorf("connection send buffer full")
)
