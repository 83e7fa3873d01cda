package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/NahuelRC/CallCenter/internal/config"
)

// Source hands out the current system-prompt text. The planner depends
// on this interface so tests can pin a fixed prompt.
type Source interface {
	ActivePrompt() string
}

// Loader is the persistence surface the cache refreshes from.
type Loader interface {
	ActiveContent(ctx context.Context) (string, error)
}

// Cache is a process-wide read-through cache over the active prompt.
// It serves the last loaded value between refreshes; staleness up to
// the refresh interval is acceptable.
type Cache struct {
	loader  Loader
	cron    *cron.Cron
	pattern string
	log     *slog.Logger

	mu   sync.RWMutex
	text string
}

func NewCache(loader Loader, cfg config.PromptConfig, log *slog.Logger) *Cache {
	return &Cache{
		loader:  loader,
		cron:    cron.New(),
		pattern: cfg.RefreshCron,
		log:     log.With(slog.String("service", "prompt")),
	}
}

// Bootstrap performs the initial load and schedules the periodic
// refresh. A failed initial load is logged, not fatal; the cache then
// serves its empty default until a refresh succeeds.
func (c *Cache) Bootstrap(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("initial prompt load failed", slog.String("error", err.Error()))
	}
	if _, err := c.cron.AddFunc(c.pattern, func() {
		if err := c.Refresh(context.Background()); err != nil {
			c.log.Warn("prompt refresh failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("schedule prompt refresh: %w", err)
	}
	c.cron.Start()
	return nil
}

func (c *Cache) Stop() {
	<-c.cron.Stop().Done()
}

// Refresh reloads the active prompt. A missing active prompt clears the
// cache; any other error keeps the last good value.
func (c *Cache) Refresh(ctx context.Context) error {
	content, err := c.loader.ActiveContent(ctx)
	if errors.Is(err, ErrNoActive) {
		content = ""
	} else if err != nil {
		return err
	}
	c.mu.Lock()
	c.text = content
	c.mu.Unlock()
	return nil
}

func (c *Cache) ActivePrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text
}
