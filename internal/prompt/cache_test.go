package prompt

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NahuelRC/CallCenter/internal/config"
)

type fakeLoader struct {
	content string
	err     error
}

func (f *fakeLoader) ActiveContent(context.Context) (string, error) {
	return f.content, f.err
}

func TestCacheRefresh(t *testing.T) {
	loader := &fakeLoader{content: "Sos un vendedor amable."}
	cache := NewCache(loader, config.PromptConfig{}, slog.Default())

	assert.Empty(t, cache.ActivePrompt())
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, "Sos un vendedor amable.", cache.ActivePrompt())

	// A failed refresh keeps the last good value.
	loader.err = errors.New("db down")
	require.Error(t, cache.Refresh(context.Background()))
	assert.Equal(t, "Sos un vendedor amable.", cache.ActivePrompt())

	// No active prompt clears the cache instead of erroring.
	loader.err = ErrNoActive
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Empty(t, cache.ActivePrompt())
}
