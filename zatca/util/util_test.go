package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugEnabled(t *testing.T) {
	for value, want := range map[string]bool{
		"":      false,
		"true":  true,
		"1":     true,
		"false": false,
		"yes":   false,
	} {
		t.Setenv("ZATCA_DEBUG", value)
		assert.Equal(t, want, DebugEnabled(), "ZATCA_DEBUG=%q", value)
	}
}

func TestHttpTraceEnabled(t *testing.T) {
	t.Setenv("ZATCA_HTTP_TRACE", "true")
	assert.True(t, HttpTraceEnabled())

	t.Setenv("ZATCA_HTTP_TRACE", "not-a-bool")
	assert.False(t, HttpTraceEnabled())
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("ZATCA_TEST_VALUE", "")
	assert.Equal(t, "def", GetEnvOrDefault("ZATCA_TEST_VALUE", "def"))

	t.Setenv("ZATCA_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrDefault("ZATCA_TEST_VALUE", "def"))
}

func TestGetEnvOrFailed(t *testing.T) {
	t.Setenv("ZATCA_TEST_SECRET", "123345")
	assert.Equal(t, "123345", GetEnvOrFailed("ZATCA_TEST_SECRET"))
}
