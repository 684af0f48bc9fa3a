package contract

import (
	"chat-relay/protocol"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Outbound is the delivery handle stored in the registry for each connected
// client. The server session backs it with the connection's write side.
type Outbound interface {
	Deliver(e protocol.Envelope) error
}

// IRegistry is the server-side table of online names, the single piece of
// state shared across sessions.
type IRegistry interface {
	Register(name string, out Outbound) bool
	Rename(oldName, newName string) bool
	Unregister(name string)
	ListNames(excluding string) []string
	Broadcast(e protocol.Envelope)
	SendTo(name string, e protocol.Envelope) bool
	Size() int
}
