package fce

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuestLoggingEnabled(t *testing.T) {
	t.Setenv("FCE_TEST_LOG_FILTER", "geo,weather")

	require.False(t, guestLoggingEnabled("", "geo"))
	require.True(t, guestLoggingEnabled("FCE_TEST_LOG_FILTER", "geo"))
	require.True(t, guestLoggingEnabled("FCE_TEST_LOG_FILTER", "weather"))
	require.False(t, guestLoggingEnabled("FCE_TEST_LOG_FILTER", "other"))
}

func TestGuestLoggingEnabledWildcard(t *testing.T) {
	t.Setenv("FCE_TEST_LOG_FILTER_STAR", "*")
	require.True(t, guestLoggingEnabled("FCE_TEST_LOG_FILTER_STAR", "anything"))
}

func TestGuestLoggingDisabledWhenEnvUnset(t *testing.T) {
	require.False(t, guestLoggingEnabled("FCE_TEST_LOG_FILTER_UNSET", "geo"))
}
