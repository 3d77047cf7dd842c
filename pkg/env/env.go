package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// InstanceID names the running process for log correlation.
func InstanceID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := Get(key, ""); id != "" {
			return id
		}
	}
	return "local"
}
