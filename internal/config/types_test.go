package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_Redacted(t *testing.T) {
	s := Secret("hunter2")

	for _, got := range []string{
		s.String(),
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%s", s),
		fmt.Sprint(struct{ Token Secret }{s}),
	} {
		assert.NotContains(t, got, "hunter2")
	}
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))

	b, err := json.Marshal(map[string]Secret{"token": s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(b))

	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())
}

func TestSecret_Empty(t *testing.T) {
	var s Secret
	assert.False(t, s.IsSet())
	assert.Equal(t, "", s.String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr string
	}{
		{in: "1m30s", want: 90 * time.Second},
		{in: " 250ms ", want: 250 * time.Millisecond},
		{in: "", want: 0},
		{in: "-1s", wantErr: "must not be negative"},
		{in: "soon", wantErr: `invalid duration "soon"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := Duration(time.Hour)
			err := d.UnmarshalText([]byte(tt.in))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := Duration(90 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
