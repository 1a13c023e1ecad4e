package config

import (
	"strings"

	"github.com/therealityreport/trr-surveys/internal/utils"
)

func (c *Config) applyEnv() {
	c.Server.Addr = utils.SafeEnv("TRR_ADDR", c.Server.Addr)
	if origins := utils.EnvList("TRR_ALLOWED_ORIGINS"); len(origins) > 0 {
		c.Server.AllowedOrigins = origins
	}
	c.Server.StaticDir = utils.SafeEnv("TRR_STATIC_DIR", c.Server.StaticDir)
	c.Database.Driver = utils.SafeEnv("TRR_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = utils.SafeEnv("TRR_DB_DSN", c.Database.DSN)
	c.Redis.Addr = utils.SafeEnv("TRR_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = utils.SafeEnv("TRR_REDIS_PASSWORD", c.Redis.Password)
	c.Auth.JWTSecret = utils.SafeEnv("TRR_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.AdminTokenHash = utils.SafeEnv("TRR_ADMIN_TOKEN_HASH", c.Auth.AdminTokenHash)
	c.Logging.Level = utils.SafeEnv("TRR_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = utils.SafeEnv("TRR_LOG_FORMAT", c.Logging.Format)
	c.Scheduler.Enabled = utils.EnvBool("TRR_SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.Interval.Duration = utils.EnvDuration("TRR_SCHEDULER_INTERVAL", c.Scheduler.Interval.Duration)
}

func (c *Config) normalize() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.StaticDir = strings.TrimSpace(c.Server.StaticDir)
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	origins := c.Server.AllowedOrigins[:0]
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.AllowedOrigins = origins
}
