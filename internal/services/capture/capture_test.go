package capture

import (
	"testing"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSnapLen(t *testing.T) {
	tests := []struct {
		name     string
		settings models.CaptureSettings
		expected int
	}{
		{name: "default", settings: models.CaptureSettings{}, expected: DefaultSnapLen},
		{name: "negative", settings: models.CaptureSettings{SnapLen: -1}, expected: DefaultSnapLen},
		{name: "configured", settings: models.CaptureSettings{SnapLen: 1514}, expected: 1514},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, snapLen(tt.settings))
		})
	}
}

func TestNew(t *testing.T) {
	assert.NotNil(t, New())
}
