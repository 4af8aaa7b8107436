package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecret_AlwaysRedacts(t *testing.T) {
	s := Secret("super-secret-refresh-token")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
}

func TestRedact(t *testing.T) {
	out := Redact("token=APP_USR-123456 other=ok", []string{"APP_USR-123456"})
	assert.Equal(t, "token=[REDACTED] other=ok", out)

	t.Run("short values are left alone", func(t *testing.T) {
		out := Redact("pin=123", []string{"123"})
		assert.Equal(t, "pin=123", out)
	})

	t.Run("empty secrets are ignored", func(t *testing.T) {
		out := Redact("nothing to hide", []string{""})
		assert.Equal(t, "nothing to hide", out)
	})
}
