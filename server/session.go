// Package server implements the accepting side of the chat protocol: a
// dispatcher that turns incoming connections into sessions, and the
// per-connection state machine that negotiates a name, relays messages
// through the shared registry and enforces liveness.
package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/errors"
	"chat-relay/liveness"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/runtime"

	"github.com/google/uuid"
)

// State is the lifecycle of one accepted connection.
type State int32

const (
	// StateNegotiatingName means the client has no registered name yet.
	StateNegotiatingName State = iota
	// StateListening means the client is registered and chatting.
	StateListening
	// StateDisconnected is terminal.
	StateDisconnected
)

// Config carries the timing knobs shared by the dispatcher and its sessions.
type Config struct {
	Addr              string
	AcceptTimeout     time.Duration
	ClientTimeout     time.Duration
	HeartbeatInterval time.Duration
	ReadIdleWait      time.Duration
}

// Session owns one client connection from name negotiation to teardown. Its
// receive loop and heartbeat loop run concurrently and only share the
// liveness monitor and the atomic state.
type Session struct {
	id        uuid.UUID
	conn      net.Conn
	reader    *bufio.Reader
	registry  *runtime.Registry
	telemetry *observability.Telemetry
	moderator *moderation.Moderator
	monitor   *liveness.Monitor
	log       *slog.Logger
	cfg       Config

	state     atomic.Int32
	nameMu    sync.Mutex
	name      string
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewSession(
	conn net.Conn,
	registry *runtime.Registry,
	telemetry *observability.Telemetry,
	moderator *moderation.Moderator,
	log *slog.Logger,
	cfg Config,
) *Session {
	id := uuid.New()
	return &Session{
		id:        id,
		conn:      conn,
		reader:    bufio.NewReader(conn),
		registry:  registry,
		telemetry: telemetry,
		moderator: moderator,
		monitor:   liveness.NewMonitor(cfg.ClientTimeout),
		log:       log.With("session", id.String(), "remote", conn.RemoteAddr().String()),
		cfg:       cfg,
	}
}

// Run drives the session until the connection dies, times out or the client
// leaves. It blocks; the dispatcher calls it in a dedicated goroutine.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown()
	go s.heartbeatLoop(ctx)
	s.receiveLoop(ctx)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Name returns the registered display name, or "" before registration.
func (s *Session) Name() string {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	s.name = name
}

// Deliver implements contract.Outbound: it frames and writes one envelope
// on the connection. The registry calls this from other sessions' loops, so
// writes are serialized by a dedicated mutex.
func (s *Session) Deliver(e protocol.Envelope) error {
	if s.State() == StateDisconnected {
		return errors.ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write([]byte(protocol.Encode(e) + "\n"))
	return err
}

// Close tears the session down. Safe to call more than once and from any
// goroutine; teardown racing a liveness timeout resolves to a single pass.
func (s *Session) Close() {
	s.teardown()
}

// receiveLoop reads one framed envelope at a time, bounded by the liveness
// threshold. A read timeout or an undecodable line is "no message this
// cycle" and only feeds the liveness check; a transport error is fatal.
func (s *Session) receiveLoop(ctx context.Context) {
	for {
		if s.State() == StateDisconnected || ctx.Err() != nil {
			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ClientTimeout))
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				s.checkLiveness()
				continue
			}
			if s.State() != StateDisconnected {
				s.log.Debug("Stream error, closing session", "err", err)
			}
			return
		}

		envelope, ok := protocol.Decode(line)
		if !ok {
			s.telemetry.IncrDecodeMisses()
			s.checkLiveness()
			if s.State() != StateDisconnected {
				select {
				case <-ctx.Done():
				case <-time.After(s.cfg.ReadIdleWait):
				}
			}
			continue
		}
		s.handle(envelope)
	}
}

// heartbeatLoop pings the client on a fixed interval, immediately on start.
// A healthy client answers each ping, which feeds its own monitor; replies
// land in the receive loop. Neither side ever blocks on the other.
func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if s.State() == StateDisconnected {
			return
		}
		if err := s.Deliver(protocol.Heartbeat()); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkLiveness runs after every empty read cycle.
func (s *Session) checkLiveness() {
	status := s.monitor.Check()
	switch status.Verdict {
	case liveness.Expired:
		s.telemetry.IncrLivenessTimeouts()
		s.log.Warn("Client timed out, disconnecting", "name", s.Name())
		s.teardown()
	case liveness.Warning:
		s.log.Warn("No heartbeat from client",
			"name", s.Name(),
			"remaining", status.Remaining.Round(time.Second))
	case liveness.Healthy:
	}
}

// handle dispatches one received envelope against the current state. Kinds
// that are not valid in the current state are ignored without a reply.
func (s *Session) handle(e protocol.Envelope) {
	switch e.Kind {
	case protocol.ConnectionCheck:
		s.monitor.Beat()

	case protocol.ConnectionOpen:
		if s.State() != StateNegotiatingName {
			return
		}
		_ = s.Deliver(protocol.Addressed(protocol.SystemName, "", "Please enter a user name:"))

	case protocol.ConnectionClose:
		s.teardown()

	case protocol.ClientName:
		s.handleNameClaim(e.Content)

	case protocol.SendBroadcast:
		if s.State() != StateListening {
			return
		}
		s.relayBroadcast(e.Content)

	case protocol.SendAddressed:
		if s.State() != StateListening {
			return
		}
		s.telemetry.IncrAddressedSends()
		// An unknown addressee drops the message without telling the
		// sender; the counters still record it.
		if !s.registry.SendTo(e.Addressee, protocol.Addressed(s.Name(), e.Addressee, e.Content)) {
			s.telemetry.IncrDroppedAddressed()
			s.log.Debug("Dropped message to unknown addressee", "addressee", e.Addressee)
		}

	case protocol.GetClientsAll, protocol.GetClientsOther:
		if s.State() == StateDisconnected {
			return
		}
		s.replyNames(e.Kind)
	}
}

// handleNameClaim registers an initial name or renames an existing one. The
// registry is the only uniqueness arbiter; this session merely reacts to
// its verdict.
func (s *Session) handleNameClaim(name string) {
	switch s.State() {
	case StateNegotiatingName:
		if name != "" && s.registry.Register(name, s) {
			s.setName(name)
			s.setState(StateListening)
			s.telemetry.IncrRegistrations()
			// Acknowledge before announcing, so the client learns its
			// name ahead of the welcome broadcast.
			_ = s.Deliver(protocol.Envelope{Kind: protocol.ClientName})
			s.registry.Broadcast(protocol.Broadcast(protocol.SystemName, "Welcome "+name+"!"))
			s.log.Info("Established connection", "name", name)
			return
		}
		_ = s.Deliver(protocol.Addressed(protocol.SystemName, "", "The requested name is invalid or taken, try again"))
		_ = s.Deliver(protocol.Addressed(protocol.SystemName, "", "Please enter a name:"))

	case StateListening:
		old := s.Name()
		if name != "" && s.registry.Rename(old, name) {
			s.setName(name)
			s.telemetry.IncrRenames()
			s.registry.Broadcast(protocol.Broadcast(protocol.SystemName, old+" has changed their name to: "+name))
			s.log.Info("Client renamed", "old", old, "new", name)
			return
		}
		_ = s.Deliver(protocol.Addressed(protocol.SystemName, "", "The requested name is invalid or taken. Your name is still: "+old))

	case StateDisconnected:
	}
}

// relayBroadcast stamps the sender, censors the content when moderation is
// configured and fans the line out to everyone.
func (s *Session) relayBroadcast(content string) {
	if s.moderator != nil && s.moderator.Enabled() {
		censored, matched := s.moderator.Censor(content)
		if len(matched) > 0 {
			s.log.Info("Censored broadcast", "name", s.Name(), "matches", len(matched))
		}
		content = censored
	}
	s.telemetry.IncrBroadcasts()
	s.registry.Broadcast(protocol.Broadcast(s.Name(), content))
}

// replyNames answers a client-list request with a point-in-time snapshot.
func (s *Session) replyNames(kind protocol.Kind) {
	excluding := ""
	if kind == protocol.GetClientsOther {
		excluding = s.Name()
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(protocol.NamesHeader)
	for _, name := range s.registry.ListNames(excluding) {
		b.WriteString("\n")
		b.WriteString(name)
	}
	_ = s.Deliver(protocol.Envelope{Kind: kind, Sender: protocol.SystemName, Content: b.String()})
}

// teardown moves the session to its terminal state exactly once: the stream
// is released, the name leaves the registry and the departure is announced.
// A session that never registered leaves silently.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.setState(StateDisconnected)
		_ = s.conn.Close()

		name := s.Name()
		if name == "" {
			return
		}
		s.registry.Unregister(name)
		s.telemetry.IncrDepartures()
		s.registry.Broadcast(protocol.Broadcast(protocol.SystemName, name+" has disconnected!"))
		s.log.Info("Client disconnected", "name", name)
	})
}
