package test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"chat-relay/client"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/server"

	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type Config struct {
	// E2E_DEBUG enables verbose logging of both sides of the exchange
	Debug bool `envconfig:"E2E_DEBUG" default:"false"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

type ChatSuite struct {
	suite.Suite
	cfg Config
	log *slog.Logger

	registry   *runtime.Registry
	dispatcher *server.Dispatcher
	done       chan error
	cancel     context.CancelFunc
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, new(ChatSuite))
}

// SetupSuite loads the environment configuration before running tests
func (s *ChatSuite) SetupSuite() {
	var err error
	s.cfg, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromLevel(slog.LevelError)
	if s.cfg.Debug {
		s.log = logs.GetLoggerFromLevel(slog.LevelDebug)
	}
}

// SetupTest boots a fresh server on an ephemeral port, with moderation
// configured, and serves it until the test ends or the registry drains.
func (s *ChatSuite) SetupTest() {
	req := s.Require()

	moderator, err := moderation.NewModerator([]string{"spam"}, '*', s.log)
	req.NoError(err)

	s.registry = runtime.NewRegistry()
	s.dispatcher = server.NewDispatcher(
		s.log, s.registry, observability.NewTelemetry(), &moderator,
		server.Config{
			Addr:              "127.0.0.1:0",
			AcceptTimeout:     50 * time.Millisecond,
			ClientTimeout:     2 * time.Second,
			HeartbeatInterval: 100 * time.Millisecond,
			ReadIdleWait:      20 * time.Millisecond,
		},
	)
	req.NoError(s.dispatcher.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.dispatcher.Run(ctx) }()
}

func (s *ChatSuite) TearDownTest() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(3 * time.Second):
		s.Fail("dispatcher did not stop")
	}
}

// connect dials the running server and logs in under the given name.
func (s *ChatSuite) connect(ctx context.Context, name string) *client.Session {
	req := s.Require()

	session, err := client.Dial(s.dispatcher.Addr().String(), client.Config{
		ServerTimeout: 2 * time.Second,
		ReadIdleWait:  20 * time.Millisecond,
	}, s.log)
	req.NoError(err)
	req.NoError(session.Start(ctx))

	req.NoError(session.RequestNameChange(name))
	req.Eventually(func() bool { return session.State() == client.StateLoggedIn },
		2*time.Second, 10*time.Millisecond, "client %q never logged in", name)
	return session
}

// waitForLine polls the session's display queue until a line containing
// the needle shows up.
func (s *ChatSuite) waitForLine(session *client.Session, needle string) string {
	var found string
	s.Require().Eventually(func() bool {
		for _, line := range session.PendingInboundLines() {
			if strings.Contains(line, needle) {
				found = line
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "no line containing %q", needle)
	return found
}

func (s *ChatSuite) TestBroadcastAndPrivateExchange() {
	req := s.Require()
	ctx := context.Background()

	alice := s.connect(ctx, "alice")
	defer alice.Shutdown()
	bob := s.connect(ctx, "bob")
	defer bob.Shutdown()

	// Given both clients online
	req.Eventually(func() bool { return s.registry.Size() == 2 },
		2*time.Second, 10*time.Millisecond)

	// When alice broadcasts
	req.NoError(alice.SendBroadcast("hello everyone"))

	// Then bob sees the stamped line
	s.Equal("alice: hello everyone", s.waitForLine(bob, "hello everyone"))

	// When alice whispers to bob
	req.NoError(alice.SendPrivate("just between us", "bob"))

	// Then only bob gets the private line
	s.Equal("alice (PRIVATE): just between us", s.waitForLine(bob, "just between us"))
}

func (s *ChatSuite) TestDuplicateNameIsRejected() {
	req := s.Require()
	ctx := context.Background()

	alice := s.connect(ctx, "alice")
	defer alice.Shutdown()

	// A second client claiming the same name stays unregistered.
	intruder, err := client.Dial(s.dispatcher.Addr().String(), client.Config{
		ServerTimeout: 2 * time.Second,
		ReadIdleWait:  20 * time.Millisecond,
	}, s.log)
	req.NoError(err)
	defer intruder.Shutdown()
	req.NoError(intruder.Start(ctx))
	req.NoError(intruder.RequestNameChange("alice"))

	s.waitForLine(intruder, "invalid or taken")
	req.Equal(client.StateNegotiatingName, intruder.State())
	req.Equal(1, s.registry.Size())
}

func (s *ChatSuite) TestRenameIsAnnounced() {
	req := s.Require()
	ctx := context.Background()

	alice := s.connect(ctx, "alice")
	defer alice.Shutdown()
	bob := s.connect(ctx, "bob")
	defer bob.Shutdown()

	req.NoError(bob.BeginRename())
	req.NoError(bob.RequestNameChange("robert"))

	s.waitForLine(alice, "bob has changed their name to: robert")
	req.Eventually(func() bool {
		names := s.registry.ListNames("")
		return len(names) == 2 && names[1] == "robert"
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ChatSuite) TestNamesListIsCached() {
	req := s.Require()
	ctx := context.Background()

	alice := s.connect(ctx, "alice")
	defer alice.Shutdown()
	bob := s.connect(ctx, "bob")
	defer bob.Shutdown()

	req.NoError(alice.RequestNames(true))

	req.Eventually(func() bool {
		names := alice.KnownOnlineNames()
		return len(names) == 2 && names[0] == "alice" && names[1] == "bob"
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ChatSuite) TestModerationCensorsBroadcasts() {
	req := s.Require()
	ctx := context.Background()

	alice := s.connect(ctx, "alice")
	defer alice.Shutdown()
	bob := s.connect(ctx, "bob")
	defer bob.Shutdown()

	req.NoError(alice.SendBroadcast("this line is pure spam really"))

	s.Equal("alice: this line is pure **** really", s.waitForLine(bob, "this line"))
}

func (s *ChatSuite) TestServerClosesAfterTheLastClientLeaves() {
	ctx := context.Background()

	alice := s.connect(ctx, "alice")
	alice.Shutdown()

	// The self-shutdown-on-idle-after-first-use policy kicks in. The run
	// error itself is collected by TearDownTest.
	s.Require().Eventually(func() bool {
		return s.dispatcher.Phase() == server.PhaseClosed
	}, 3*time.Second, 20*time.Millisecond, "dispatcher still serving in phase %s", s.dispatcher.Phase())
}
