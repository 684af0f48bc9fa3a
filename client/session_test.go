package client

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"chat-relay/protocol"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// fakeServer is the far end of a net.Pipe: it records every envelope the
// client writes and can inject envelopes toward the client.
type fakeServer struct {
	conn     net.Conn
	received chan protocol.Envelope
}

func newFakeServer(t *testing.T) (*fakeServer, *Session) {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()

	srv := &fakeServer{conn: serverEnd, received: make(chan protocol.Envelope, 16)}
	go func() {
		scanner := bufio.NewScanner(serverEnd)
		for scanner.Scan() {
			if e, ok := protocol.Decode(scanner.Text()); ok {
				srv.received <- e
			}
		}
	}()

	cfg := Config{ServerTimeout: 2 * time.Second, ReadIdleWait: 10 * time.Millisecond}
	session := newSession(clientEnd, cfg, logs.GetLoggerFromLevel(slog.LevelError))

	t.Cleanup(func() {
		session.teardown("")
		_ = serverEnd.Close()
	})
	return srv, session
}

// inject sends one envelope from the fake server to the client.
func (f *fakeServer) inject(t *testing.T, e protocol.Envelope) {
	t.Helper()
	_ = f.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := f.conn.Write([]byte(protocol.Encode(e) + "\n"))
	require.NoError(t, err)
}

// expect waits for the next envelope written by the client.
func (f *fakeServer) expect(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case e := <-f.received:
		return e
	case <-time.After(time.Second):
		require.Fail(t, "expected an envelope from the client")
		return protocol.Envelope{}
	}
}

func TestSession_StartAnnouncesTheLink(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)

	req.NoError(session.Start(context.Background()))

	req.Equal(protocol.ConnectionOpen, srv.expect(t).Kind)
	req.Equal(StateNegotiatingName, session.State())
}

func TestSession_HeartbeatIsAnsweredImmediately(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)
	req.NoError(session.Start(context.Background()))
	srv.expect(t) // CONNECTION_OPEN

	before := session.monitor.LastBeat()
	srv.inject(t, protocol.Heartbeat())

	// The reply comes back without the client ever blocking on it.
	req.Equal(protocol.ConnectionCheck, srv.expect(t).Kind)
	req.Eventually(func() bool {
		return session.monitor.LastBeat().After(before)
	}, time.Second, 10*time.Millisecond)
}

func TestSession_NameAcknowledgmentLogsIn(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)
	req.NoError(session.Start(context.Background()))
	srv.expect(t) // CONNECTION_OPEN

	// Given a name claim on its way
	req.NoError(session.RequestNameChange("alice"))
	claim := srv.expect(t)
	req.Equal(protocol.ClientName, claim.Kind)
	req.Equal("alice", claim.Content)
	req.Equal(StateNegotiatingName, session.State())

	// When the server acknowledges with a bare CLIENT_NAME
	srv.inject(t, protocol.Envelope{Kind: protocol.ClientName})

	// Then the session is logged in
	req.Eventually(func() bool { return session.State() == StateLoggedIn },
		time.Second, 10*time.Millisecond)
}

func TestSession_InboundChatQueuesForDisplay(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)
	req.NoError(session.Start(context.Background()))
	srv.expect(t)

	srv.inject(t, protocol.Broadcast("bob", "hello all"))
	srv.inject(t, protocol.Addressed("bob", "alice", "just you"))

	req.Eventually(func() bool {
		return len(session.KnownOnlineNames()) == 0 && session.queuedCount() == 2
	}, time.Second, 10*time.Millisecond)

	lines := session.PendingInboundLines()
	req.Equal([]string{"bob: hello all", "bob (PRIVATE): just you"}, lines)

	// The queue drains on read.
	req.Empty(session.PendingInboundLines())
}

func TestSession_NamesReplyRefreshesTheCache(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)
	req.NoError(session.Start(context.Background()))
	srv.expect(t)

	req.NoError(session.RequestNames(true))
	req.Equal(protocol.GetClientsAll, srv.expect(t).Kind)

	srv.inject(t, protocol.Envelope{
		Kind:    protocol.GetClientsAll,
		Sender:  protocol.SystemName,
		Content: "\n" + protocol.NamesHeader + "\nalice\nbob",
	})

	req.Eventually(func() bool {
		names := session.KnownOnlineNames()
		return len(names) == 2 && names[0] == "alice" && names[1] == "bob"
	}, time.Second, 10*time.Millisecond)
}

func TestSession_SendPrivateEchoesLocally(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)
	req.NoError(session.Start(context.Background()))
	srv.expect(t)

	req.NoError(session.SendPrivate("psst", "bob"))

	sent := srv.expect(t)
	req.Equal(protocol.SendAddressed, sent.Kind)
	req.Equal("bob", sent.Addressee)
	req.Equal("psst", sent.Content)

	// The sender sees their own side of the conversation.
	req.Equal([]string{"TO: bob (PRIVATE): psst"}, session.PendingInboundLines())
}

func TestSession_SendPrivateRejectsAnEmptyTarget(t *testing.T) {
	req := require.New(t)
	_, session := newFakeServer(t)

	req.Error(session.SendPrivate("psst", "   "))
}

func TestSession_BeginRenameNeedsLogin(t *testing.T) {
	req := require.New(t)
	_, session := newFakeServer(t)

	// Not logged in yet: renaming is not available.
	req.Error(session.BeginRename())

	session.setState(StateLoggedIn)
	req.NoError(session.BeginRename())
	req.Equal(StateRenaming, session.State())

	// Supplying the new name leaves the sub-mode.
	req.NoError(session.RequestNameChange("bob"))
	req.Equal(StateLoggedIn, session.State())
}

func TestSession_ShutdownAnnouncesAndTerminates(t *testing.T) {
	req := require.New(t)
	srv, session := newFakeServer(t)
	req.NoError(session.Start(context.Background()))
	srv.expect(t)

	session.Shutdown()

	req.Equal(protocol.ConnectionClose, srv.expect(t).Kind)
	req.Equal(StateClosed, session.State())

	// Terminal state: further sends are refused.
	req.Error(session.SendBroadcast("anyone there?"))
}

// queuedCount peeks at the display queue without draining it.
func (s *Session) queuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
