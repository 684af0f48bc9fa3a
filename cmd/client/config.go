package main

import "time"

// Config defines the client-side environment variables.
type Config struct {
	Host          string        `env:"CHAT_SERVER_HOST,default=localhost"`
	Port          int           `env:"CHAT_SERVER_PORT,default=60000"`
	ServerTimeout time.Duration `env:"SERVER_TIMEOUT,default=20s"`
	ReadIdleWait  time.Duration `env:"READ_IDLE_WAIT,default=1s"`
	InputPoll     time.Duration `env:"INPUT_POLL,default=100ms"`
	LogLevel      string        `env:"LOG_LEVEL,default=WARN"`
	// CHAT_COLOURS enables colorized output for better readability
	Colours bool `env:"CHAT_COLOURS,default=true"`
}
