package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config stores environment-driven settings for the server.
type Config struct {
	// BotToken is the Telegram bot token from @BotFather.
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	// ChatID is the single operator chat the relay talks to.
	ChatID int64 `env:"TELEGRAM_CHAT_ID,required"`
	// LogLevel sets the logger level.
	LogLevel string `env:"TG_MCP_LOG_LEVEL" envDefault:"info"`
	// Transport selects the MCP transport: stdio or http.
	Transport string `env:"TG_MCP_TRANSPORT" envDefault:"stdio"`
	// HTTPListen is the listen address for the http transport.
	HTTPListen string `env:"TG_MCP_HTTP_LISTEN" envDefault:":8080"`
	// HTTPPath is the MCP endpoint path for the http transport.
	HTTPPath string `env:"TG_MCP_HTTP_PATH" envDefault:"/mcp"`
	// ShutdownTimeout controls graceful shutdown duration.
	ShutdownTimeout time.Duration `env:"TG_MCP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// DBPath is the sqlite file for the durable approval tier.
	// Empty disables persistence.
	DBPath string `env:"TG_MCP_DB_PATH" envDefault:""`
	// PollInterval is the re-check interval for blocking waits.
	PollInterval time.Duration `env:"TG_MCP_POLL_INTERVAL" envDefault:"2s"`
	// DefaultApprovalTimeout applies when a tool call omits a timeout.
	DefaultApprovalTimeout time.Duration `env:"TG_MCP_DEFAULT_TIMEOUT" envDefault:"5m"`
	// InstructionGrace bounds how long a wait follows a request that is
	// awaiting a custom instruction beyond its own deadline.
	InstructionGrace time.Duration `env:"TG_MCP_INSTRUCTION_GRACE" envDefault:"10m"`
	// IdempotencyTTL is how long request_approval results are replayed
	// for a repeated correlation id.
	IdempotencyTTL time.Duration `env:"TG_MCP_IDEMPOTENCY_TTL" envDefault:"1h"`
	// RateLimit caps outbound Telegram sends per second.
	RateLimit float64 `env:"TG_MCP_RATE_LIMIT" envDefault:"25"`
	// RateBurst is the send burst capacity.
	RateBurst int `env:"TG_MCP_RATE_BURST" envDefault:"5"`
}

// Load parses environment variables into Config.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if cfg.Transport != "stdio" && cfg.Transport != "http" {
		return Config{}, fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return cfg, nil
}
