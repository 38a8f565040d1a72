package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tapgate/tapgate/internal/cli/tapgatectl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("TAPGATE_CLI_TIMEOUT")), 30*time.Second)
	options := tapgatectl.Options{
		BaseURL: envOr("TAPGATE_API_URL", "http://localhost:8080"),
		UserID:  strings.TrimSpace(os.Getenv("TAPGATE_USER_ID")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := tapgatectl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid TAPGATE_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
