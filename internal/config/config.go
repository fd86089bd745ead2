package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	Terminal Terminal `envPrefix:"TERMINAL_"`
	Loyalty  Loyalty  `envPrefix:"LOYALTY_"`
}

type Terminal struct {
	ID   string `env:"ID" envDefault:"terminal-01"`
	Mode string `env:"MODE" envDefault:"master"` // master, satellite

	// local sqlite file holding the shift buffer and customer working copy
	LocalDBPath string `env:"LOCAL_DB_PATH" envDefault:"terminal.db"`
	// DSN of the canonical shared store (e.g. a network-mounted sqlite file)
	RemoteDSN string `env:"REMOTE_DSN" envDefault:"remote.db"`

	// upper bound for any remote-touching operation; on expiry the
	// operation fails and the shift buffer is preserved
	SyncTimeout time.Duration `env:"SYNC_TIMEOUT" envDefault:"10s"`
}

type Loyalty struct {
	// optional YAML policy overrides; built-in defaults apply when empty
	PolicyPath string `env:"POLICY_PATH"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
