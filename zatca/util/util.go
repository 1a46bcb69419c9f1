package util

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.util")

// DebugEnabled reports whether ZATCA_DEBUG forces debug logging.
func DebugEnabled() bool {
	return envFlag("ZATCA_DEBUG")
}

// HttpTraceEnabled reports whether ZATCA_HTTP_TRACE asks the gateway client to log request and response bodies.
func HttpTraceEnabled() bool {
	return envFlag("ZATCA_HTTP_TRACE")
}

// envFlag is true only for a set variable that parses as a true boolean.
func envFlag(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	on, err := strconv.ParseBool(v)
	return err == nil && on
}

// GetEnvOrFailed returns the variable value and exits the process when it is unset.
// Only the demo and the CLI call it, for secrets such as the onboarding OTP.
func GetEnvOrFailed(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Fatalf("%s environment variable is not set", key)
	}
	return v
}

// GetEnvOrDefault returns the variable value or def when it is unset or empty.
func GetEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
