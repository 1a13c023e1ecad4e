package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// EnvBool parses key as a boolean, returning fallback when it is unset or unparsable.
func EnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func EnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func EnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// EnvList splits a comma separated variable, dropping blank entries.
func EnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(SafeEnv(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
