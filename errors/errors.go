package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrUnauthenticated  = fmt.Errorf("unauthenticated")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrBusUnavailable   = fmt.Errorf("broadcast bus unavailable")
	ErrQueueUnavailable = fmt.Errorf("write queue unavailable")
	ErrMalformedPayload = fmt.Errorf("malformed payload")
)
