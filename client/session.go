// Package client implements the connecting side of the chat protocol: one
// session per process, from name negotiation through chatting to teardown.
// Presentation layers (console, GUI) consume its surface and never touch
// the stream.
package client

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/errors"
	"chat-relay/liveness"
	"chat-relay/protocol"
)

// State is the lifecycle of the client's single connection.
type State int32

const (
	// StateNegotiatingName: connected, no acknowledged name yet.
	StateNegotiatingName State = iota
	// StateLoggedIn: the server acknowledged a name.
	StateLoggedIn
	// StateRenaming: logged in, next name input becomes a rename claim.
	StateRenaming
	// StateClosed is terminal.
	StateClosed
)

// Config carries the client-side timing knobs.
type Config struct {
	ServerTimeout time.Duration
	ReadIdleWait  time.Duration
}

// Session is the client-side connection state machine and the surface
// consumed by presentation shims. Inbound display lines queue up until a
// presentation layer drains them.
type Session struct {
	conn    net.Conn
	reader  *bufio.Reader
	monitor *liveness.Monitor
	log     *slog.Logger
	cfg     Config

	state   atomic.Int32
	writeMu sync.Mutex

	mu      sync.Mutex
	pending []string
	names   []string

	closeOnce sync.Once
}

// Dial connects to the server. A refused connection is fatal and never
// retried; the caller decides whether to give up or ask the user.
func Dial(addr string, cfg Config, log *slog.Logger) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server at %s: %w", addr, err)
	}
	return newSession(conn, cfg, log), nil
}

func newSession(conn net.Conn, cfg Config, log *slog.Logger) *Session {
	return &Session{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		monitor: liveness.NewMonitor(cfg.ServerTimeout),
		log:     log,
		cfg:     cfg,
	}
}

// Start announces the new link and begins receiving. The receive loop runs
// until the session closes; Start itself returns immediately.
func (s *Session) Start(ctx context.Context) error {
	if err := s.send(protocol.Envelope{Kind: protocol.ConnectionOpen}); err != nil {
		return err
	}
	go s.receiveLoop(ctx)
	return nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// SendBroadcast sends a chat line to everyone. The server stamps the sender.
func (s *Session) SendBroadcast(text string) error {
	if s.State() == StateClosed {
		return errors.ErrSessionClosed
	}
	return s.send(protocol.Envelope{Kind: protocol.SendBroadcast, Content: strings.TrimSpace(text)})
}

// SendPrivate sends a chat line to one named client. The local echo lands in
// the display queue so the sender sees both sides of the conversation.
func (s *Session) SendPrivate(text, target string) error {
	if s.State() == StateClosed {
		return errors.ErrSessionClosed
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.ErrEmptyTarget
	}
	err := s.send(protocol.Envelope{
		Kind:      protocol.SendAddressed,
		Addressee: target,
		Content:   strings.TrimSpace(text),
	})
	if err != nil {
		return err
	}
	s.enqueue("TO: " + target + " (PRIVATE): " + strings.TrimSpace(text))
	return nil
}

// RequestNameChange claims a display name. While not yet logged in this is
// the initial claim; while renaming it is the replacement name. The state
// only advances when the server acknowledges.
func (s *Session) RequestNameChange(name string) error {
	if s.State() == StateClosed {
		return errors.ErrSessionClosed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.ErrEmptyName
	}
	if s.State() == StateRenaming {
		// The claim is on its way; the logged-in surface is usable again.
		s.setState(StateLoggedIn)
	}
	return s.send(protocol.NameClaim(name))
}

// BeginRename arms the rename sub-mode: nothing is sent until the next name
// input supplies the new name.
func (s *Session) BeginRename() error {
	if s.State() != StateLoggedIn {
		return errors.ErrNotLoggedIn
	}
	s.setState(StateRenaming)
	return nil
}

// RequestNames asks the server for the online-name list. The reply updates
// the local cache read by KnownOnlineNames.
func (s *Session) RequestNames(includeSelf bool) error {
	if s.State() == StateClosed {
		return errors.ErrSessionClosed
	}
	kind := protocol.GetClientsOther
	if includeSelf {
		kind = protocol.GetClientsAll
	}
	return s.send(protocol.Envelope{Kind: kind})
}

// PendingInboundLines drains and returns the queued display lines.
func (s *Session) PendingInboundLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.pending
	s.pending = nil
	return lines
}

// KnownOnlineNames returns the cached snapshot from the last names reply.
// It may be stale; call RequestNames to refresh it.
func (s *Session) KnownOnlineNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Shutdown announces the voluntary disconnect and closes the session.
func (s *Session) Shutdown() {
	if s.State() != StateClosed {
		_ = s.send(protocol.Envelope{Kind: protocol.ConnectionClose})
	}
	s.teardown("")
}

// receiveLoop mirrors the server's: bounded reads, decode misses count as
// silence, transport errors are fatal.
func (s *Session) receiveLoop(ctx context.Context) {
	defer s.teardown("")
	for {
		if s.State() == StateClosed || ctx.Err() != nil {
			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ServerTimeout))
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				s.checkLiveness()
				continue
			}
			if s.State() != StateClosed {
				s.log.Debug("Stream error, closing", "err", err)
			}
			return
		}

		envelope, ok := protocol.Decode(line)
		if !ok {
			s.checkLiveness()
			if s.State() != StateClosed {
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

// handle reacts to one envelope from the server.
func (s *Session) handle(e protocol.Envelope) {
	switch e.Kind {
	case protocol.ConnectionCheck:
		// Liveness ping-pong: record the beat and answer right away,
		// without ever waiting for anything in return.
		s.monitor.Beat()
		_ = s.send(protocol.Heartbeat())

	case protocol.ClientName:
		// The bare acknowledgment confirms our claimed name.
		if s.State() == StateNegotiatingName {
			s.setState(StateLoggedIn)
		}

	case protocol.SendBroadcast:
		s.enqueue(e.Sender + ": " + e.Content)

	case protocol.SendAddressed:
		s.enqueue(e.Sender + " (PRIVATE): " + e.Content)

	case protocol.GetClientsAll, protocol.GetClientsOther:
		s.cacheNames(e.Content)
		s.enqueue(e.Content)
	}
}

// cacheNames parses a names reply: a blank first line, the header, then one
// name per line.
func (s *Session) cacheNames(content string) {
	parts := strings.Split(content, "\n")

	var names []string
	if len(parts) >= 2 && parts[1] == protocol.NamesHeader {
		names = append(names, parts[2:]...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = names
}

func (s *Session) enqueue(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, line)
}

func (s *Session) send(e protocol.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write([]byte(protocol.Encode(e) + "\n"))
	return err
}

// checkLiveness runs after every empty read cycle. A silent server first
// earns a countdown warning in the display queue, then the teardown.
func (s *Session) checkLiveness() {
	status := s.monitor.Check()
	switch status.Verdict {
	case liveness.Expired:
		s.teardown("Connection to the server has timed out and will be disconnected. Goodbye.")
	case liveness.Warning:
		remaining := status.Remaining.Round(time.Second) / time.Second
		s.enqueue(fmt.Sprintf("%s: Lost connection to Server! Connection will time out in: %d seconds...",
			protocol.SystemName, remaining))
	case liveness.Healthy:
	}
}

// teardown closes exactly once; farewell, when non-empty, is queued for the
// presentation layer before the queue goes quiet.
func (s *Session) teardown(farewell string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		_ = s.conn.Close()
		if farewell != "" {
			s.enqueue(protocol.SystemName + ": " + farewell)
		}
		s.log.Info("Session closed")
	})
}
