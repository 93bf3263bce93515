package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("RYD_TEST_STR", "value")
	assert.Equal(t, "value", GetEnv("RYD_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnv("RYD_TEST_STR_UNSET", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("RYD_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("RYD_TEST_INT", 7))

	t.Setenv("RYD_TEST_INT", "not a number")
	assert.Equal(t, 7, GetEnvInt("RYD_TEST_INT", 7))

	assert.Equal(t, 7, GetEnvInt("RYD_TEST_INT_UNSET", 7))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("RYD_TEST_DUR", "5m")
	assert.Equal(t, 5*time.Minute, GetEnvDuration("RYD_TEST_DUR", time.Second))

	t.Setenv("RYD_TEST_DUR", "soon")
	assert.Equal(t, time.Second, GetEnvDuration("RYD_TEST_DUR", time.Second))
}
