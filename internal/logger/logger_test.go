package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{"planId", "p1", "jwt_token", "abc", "AccessKeySecret", "s", "dangling"})
	assert.Equal(t, []interface{}{"planId", "p1", "jwt_token", redacted, "AccessKeySecret", redacted, "dangling"}, got)
}

func TestLogger_WritesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("player", "p1").Info("plan transition", "from", "PENDING", "to", "FILTERED", "authorization", "Bearer x")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "p1", fields["player"])
		assert.Equal(t, "FILTERED", fields["to"])
		assert.Equal(t, redacted, fields["authorization"])
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil).SugaredLogger)
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
