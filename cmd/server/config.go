package main

import "time"

type Config struct {
	Host              string        `env:"CHAT_HOST,default=0.0.0.0"`
	Port              int           `env:"CHAT_PORT,default=60000"`
	AcceptTimeout     time.Duration `env:"ACCEPT_TIMEOUT,default=10s"`
	ClientTimeout     time.Duration `env:"CLIENT_TIMEOUT,default=30s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=5s"`
	ReadIdleWait      time.Duration `env:"READ_IDLE_WAIT,default=5s"`
	ReportInterval    time.Duration `env:"REPORT_INTERVAL,default=30s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	CensoredWords     []string      `env:"CENSORED_WORDS"`
	CensorCharacter   string        `env:"CENSOR_CHARACTER,default=*"`
}
