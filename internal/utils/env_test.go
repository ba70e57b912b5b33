package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeEnv(t *testing.T) {
	const key = "_SURVEY_TEST_SAFEENV"
	t.Setenv(key, "")
	assert.Equal(t, "fallback", SafeEnv(key, "fallback"))
	t.Setenv(key, "value")
	assert.Equal(t, "value", SafeEnv(key, "fallback"))
}

func TestEnvIntAndBool(t *testing.T) {
	t.Setenv("_SURVEY_TEST_INT", "42")
	t.Setenv("_SURVEY_TEST_BAD", "x")
	t.Setenv("_SURVEY_TEST_BOOL", "true")
	assert.Equal(t, 42, EnvInt("_SURVEY_TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("_SURVEY_TEST_BAD", 1))
	assert.True(t, EnvBool("_SURVEY_TEST_BOOL", false))
	assert.False(t, EnvBool("_SURVEY_TEST_BAD", false))
}
