package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrSessionClosed  = fmt.Errorf("session closed")
	ErrEmptyName      = fmt.Errorf("display name must not be empty")
	ErrEmptyTarget    = fmt.Errorf("addressed message needs a target name")
	ErrNotLoggedIn    = fmt.Errorf("not logged in")
	ErrInvalidTimings = fmt.Errorf("heartbeat interval must be shorter than the liveness threshold")
)
