package config

import "time"

func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "trr-surveys.db",
		},
		Redis: Redis{
			TTL: Duration{5 * time.Minute},
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Scheduler: Scheduler{
			Enabled:  true,
			Interval: Duration{time.Hour},
		},
	}
}
