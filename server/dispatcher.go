package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
)

// Phase is the dispatcher's lifecycle.
type Phase int32

const (
	// PhaseRunningPending: accepting, but nobody has ever registered.
	PhaseRunningPending Phase = iota
	// PhaseRunning: the registry has held at least one name.
	PhaseRunning
	// PhaseClosed: the registry drained after first use; accepting stopped.
	PhaseClosed
)

var phaseNames = map[Phase]string{
	PhaseRunningPending: "RUNNING_PENDING",
	PhaseRunning:        "RUNNING",
	PhaseClosed:         "CLOSE",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// Dispatcher accepts connections and spawns one Session per client. It
// serves until the first client has come and every client has gone again,
// then closes itself: an idle server that has already been used has no
// reason to stay up.
type Dispatcher struct {
	log       *slog.Logger
	registry  *runtime.Registry
	telemetry *observability.Telemetry
	moderator *moderation.Moderator
	cfg       Config

	ln         *net.TCPListener
	phase      atomic.Int32
	lastStatus string

	sessionMu sync.Mutex
	sessions  []*Session
	wg        sync.WaitGroup
}

func NewDispatcher(
	log *slog.Logger,
	registry *runtime.Registry,
	telemetry *observability.Telemetry,
	moderator *moderation.Moderator,
	cfg Config,
) *Dispatcher {
	return &Dispatcher{
		log:       log,
		registry:  registry,
		telemetry: telemetry,
		moderator: moderator,
		cfg:       cfg,
	}
}

// Listen binds the configured endpoint. Split from Run so callers can learn
// the bound address (port 0 in tests) before serving.
func (d *Dispatcher) Listen() error {
	ln, err := net.Listen("tcp", d.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.cfg.Addr, err)
	}
	d.ln = ln.(*net.TCPListener)
	return nil
}

// Addr returns the bound address; only valid after Listen.
func (d *Dispatcher) Addr() net.Addr {
	return d.ln.Addr()
}

// Phase returns the dispatcher's current lifecycle phase.
func (d *Dispatcher) Phase() Phase {
	return Phase(d.phase.Load())
}

// Run accepts connections until the idle-after-first-use policy closes the
// server or the context is canceled. Implements contract.Worker.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.ln == nil {
		if err := d.Listen(); err != nil {
			return err
		}
	}
	defer d.shutdown()

	d.log.Info("Server started", "addr", d.ln.Addr().String())
	for {
		if d.Phase() == PhaseClosed {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_ = d.ln.SetDeadline(time.Now().Add(d.cfg.AcceptTimeout))
		conn, err := d.ln.Accept()
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				d.reviewPhase()
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		d.telemetry.IncrConnectionsOpened()
		session := NewSession(conn, d.registry, d.telemetry, d.moderator, d.log, d.cfg)

		d.sessionMu.Lock()
		d.sessions = append(d.sessions, session)
		d.sessionMu.Unlock()

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			session.Run(ctx)
		}()
	}
}

// reviewPhase runs on every accept timeout: it promotes to RUNNING once the
// registry has been used and closes once it drains again, and logs a status
// line whenever the status actually changed.
func (d *Dispatcher) reviewPhase() {
	if d.registry.Drained() {
		d.phase.Store(int32(PhaseClosed))
	} else if d.registry.Size() > 0 {
		d.phase.Store(int32(PhaseRunning))
	}

	status := fmt.Sprintf("%s --- %d connections", d.Phase(), d.registry.Size())
	if status != d.lastStatus {
		d.lastStatus = status
		d.log.Info("Status update", "phase", d.Phase().String(), "connections", d.registry.Size())
	}
}

// shutdown releases the listener and every live session, then waits for
// their loops to finish.
func (d *Dispatcher) shutdown() {
	d.phase.Store(int32(PhaseClosed))
	_ = d.ln.Close()

	d.sessionMu.Lock()
	sessions := make([]*Session, len(d.sessions))
	copy(sessions, d.sessions)
	d.sessionMu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	d.wg.Wait()
	d.log.Info("Server closed")
}
