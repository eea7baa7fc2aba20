package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, Production, ParseEnvironment("production"))
	assert.Equal(t, Production, ParseEnvironment("PROD"))
	assert.Equal(t, Testing, ParseEnvironment("ci"))
	assert.Equal(t, Development, ParseEnvironment("unknown"))

	var e Environment
	assert.NoError(t, e.Decode(" Staging "))
	assert.Equal(t, Staging, e)
	assert.False(t, e.IsProduction())
}

func TestDefaultLogLevel(t *testing.T) {
	assert.Equal(t, "info", Production.DefaultLogLevel())
	assert.Equal(t, "warn", Testing.DefaultLogLevel())
	assert.Equal(t, "debug", Development.DefaultLogLevel())
}
