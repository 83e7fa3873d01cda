package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoActive is returned when the prompts table holds no active row.
var ErrNoActive = errors.New("no active prompt")

type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewStore(pool *pgxpool.Pool, log *slog.Logger) *Store {
	return &Store{
		pool: pool,
		log:  log.With(slog.String("service", "prompt")),
	}
}

// ActiveContent returns the newest active prompt's text.
func (s *Store) ActiveContent(ctx context.Context) (string, error) {
	if s.pool == nil {
		return "", fmt.Errorf("prompt pool not configured")
	}
	var content string
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM prompts WHERE active ORDER BY created_at DESC LIMIT 1`,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoActive
	}
	if err != nil {
		return "", fmt.Errorf("active prompt: %w", err)
	}
	return content, nil
}

func (s *Store) List(ctx context.Context) ([]Prompt, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("prompt pool not configured")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, content, active, created_at FROM prompts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()
	items := make([]Prompt, 0)
	for rows.Next() {
		var item Prompt
		if err := rows.Scan(&item.ID, &item.Name, &item.Content, &item.Active, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("list prompts: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
