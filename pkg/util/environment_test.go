package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{input: "PT1M", expected: time.Minute},
		{input: "PT1H30M", expected: 90 * time.Minute},
		{input: "PT45S", expected: 45 * time.Second},
		{input: "2m30s", expected: 150 * time.Second},
		{input: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	env := map[string]string{
		"INT":      "7",
		"BAD_INT":  "seven",
		"FLOAT":    "2.5",
		"DURATION": "PT2M",
	}

	assert.Equal(t, 7, GetEnvInt(env, "INT", 1))
	assert.Equal(t, 1, GetEnvInt(env, "BAD_INT", 1))
	assert.Equal(t, 3, GetEnvInt(env, "MISSING", 3))
	assert.Equal(t, 2.5, GetEnvFloat(env, "FLOAT", 0))
	assert.Equal(t, 2*time.Minute, GetEnvDuration(env, "DURATION", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration(env, "MISSING", time.Second))
}

func TestInPlaceFilter(t *testing.T) {
	values := []int{1, 2, 3, 4, 5, 6}
	InPlaceFilter(&values, func(v int) bool { return v%2 == 0 })

	assert.Equal(t, []int{2, 4, 6}, values)
}
