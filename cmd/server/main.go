package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/server"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. Keeping
// the logic out of main ensures every defer executes before the process
// exits and keeps the error path in one place.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := internal.Port(config.Port); err != nil {
		return err
	}
	timings := internal.Timings{
		LivenessThreshold: config.ClientTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
		ReadIdleWait:      config.ReadIdleWait,
	}
	if err := timings.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Moderation (disabled when no word list is configured)
	censorChar, err := internal.CensorRune(config.CensorCharacter)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(config.CensoredWords, censorChar, log)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 3. Shared state & observability
	registry := runtime.NewRegistry()
	telemetry := observability.NewTelemetry()

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background reporter under supervision
	sup := runtime.NewSupervisor(log, config.RestartInterval)
	sup.Add(observability.NewReporter(log, telemetry, registry, config.ReportInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Dispatcher: serves until the idle-after-first-use policy closes it
	dispatcher := server.NewDispatcher(log, registry, telemetry, &moderator, server.Config{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		AcceptTimeout:     config.AcceptTimeout,
		ClientTimeout:     config.ClientTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
		ReadIdleWait:      config.ReadIdleWait,
	})
	err = dispatcher.Run(ctx)
	if err != nil && ctx.Err() != nil {
		// A canceled accept loop is a normal shutdown, not a failure.
		err = nil
	}

	// 7. Final cleanup
	stop()
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")
	return err
}
