package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastMessageText(t *testing.T) {
	tests := []struct {
		name string
		req  AppendRequest
		want string
	}{
		{"body wins", AppendRequest{Body: "hola", Media: []Media{{URL: "https://x/y.jpg"}}}, "hola"},
		{"media only", AppendRequest{Media: []Media{{URL: "https://x/y.jpg"}}}, "[media]"},
		{"empty", AppendRequest{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.LastMessageText())
		})
	}
}

func TestNormalizeRole(t *testing.T) {
	role, err := normalizeRole(" User ")
	require.NoError(t, err)
	assert.Equal(t, "user", role)

	_, err = normalizeRole("system")
	assert.Error(t, err)
}

func TestNormalizeSource(t *testing.T) {
	for _, valid := range []string{"twilio", "bot", "human"} {
		source, err := normalizeSource(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, source)
	}
	_, err := normalizeSource("webhook")
	assert.Error(t, err)
}
