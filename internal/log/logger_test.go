package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOr(t *testing.T) {
	nop := zerolog.Nop()
	got := Or(&nop, "autosave")
	assert.Equal(t, zerolog.Disabled, got.GetLevel())

	fallback := Or(nil, "autosave")
	assert.NotEqual(t, zerolog.Disabled, fallback.GetLevel())
}
