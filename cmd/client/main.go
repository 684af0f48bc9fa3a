package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/client"
	"chat-relay/internal"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, the connection lifecycle and the
// console loop feeding user input into the session.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := internal.Port(config.Port); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect. A refused connection is fatal, never retried.
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	session, err := client.Dial(addr, client.Config{
		ServerTimeout: config.ServerTimeout,
		ReadIdleWait:  config.ReadIdleWait,
	}, log)
	if err != nil {
		return exitRuntime, err
	}
	defer session.Shutdown()

	if err := session.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("failed to open the session: %w", err)
	}

	// 4. Read console lines in the background; the select loop below stays
	// responsive to shutdown even when nobody types anything.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	// 5. Console loop: drain the display queue, feed input to the session.
	out := &console{colours: config.Colours}
	ticker := time.NewTicker(config.InputPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil

		case <-ticker.C:
			for _, line := range session.PendingInboundLines() {
				out.print(line, session.KnownOnlineNames())
			}
			if session.State() == client.StateClosed {
				return exitOK, nil
			}

		case input, ok := <-lines:
			if !ok {
				session.Shutdown()
				return exitOK, nil
			}
			if err := apply(session, out, input); err != nil {
				log.Warn("Input not accepted", "err", err)
			}
		}
	}
}

// apply executes one interpreted line of user input against the session.
func apply(session *client.Session, out *console, input string) error {
	action := client.Interpret(session.State(), input)
	switch action.Kind {
	case client.ActionQuit:
		session.Shutdown()
		return nil
	case client.ActionBeginRename:
		if err := session.BeginRename(); err != nil {
			return err
		}
		out.println("Enter new name:", 0)
		return nil
	case client.ActionListNames:
		return session.RequestNames(true)
	case client.ActionSetName:
		return session.RequestNameChange(action.Text)
	case client.ActionPrivate:
		return session.SendPrivate(action.Text, action.Target)
	case client.ActionBroadcast:
		return session.SendBroadcast(action.Text)
	case client.ActionNone:
		return nil
	}
	return nil
}
