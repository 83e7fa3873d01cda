package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no thread exists for a phone.
var ErrNotFound = errors.New("conversation not found")

// Service appends messages to per-contact threads and serves thread
// reads. Appends are not idempotent: repeated calls for the same
// logical event store duplicate items.
type Service struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewService(pool *pgxpool.Pool, log *slog.Logger) *Service {
	return &Service{
		pool: pool,
		log:  log.With(slog.String("service", "conversation")),
	}
}

// AppendMessage upserts the thread, inserts one message row with a
// server-assigned timestamp and refreshes the thread's last-message
// denormalization. The contact's status is mirrored onto the thread
// best-effort; a missing contact is not an error.
func (s *Service) AppendMessage(ctx context.Context, req AppendRequest) (Message, error) {
	if s.pool == nil {
		return Message{}, fmt.Errorf("conversation pool not configured")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return Message{}, fmt.Errorf("conversation phone is required")
	}
	role, err := normalizeRole(req.Role)
	if err != nil {
		return Message{}, err
	}
	source, err := normalizeSource(req.Source)
	if err != nil {
		return Message{}, err
	}

	media := req.Media
	if media == nil {
		media = []Media{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return Message{}, fmt.Errorf("encode media: %w", err)
	}
	history := req.StatusHistory
	if history == nil {
		history = []StatusEvent{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return Message{}, fmt.Errorf("encode status history: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO conversations (phone) VALUES ($1)
		ON CONFLICT (phone) DO NOTHING`,
		phone); err != nil {
		return Message{}, fmt.Errorf("upsert thread: %w", err)
	}

	msg := Message{
		ID:            uuid.NewString(),
		Phone:         phone,
		Role:          role,
		Source:        source,
		Body:          req.Body,
		Media:         media,
		MessageSid:    req.MessageSid,
		LastStatus:    req.LastStatus,
		StatusHistory: history,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO conversation_messages
			(id, phone, role, source, body, media, message_sid, last_status, status_history)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING created_at`,
		msg.ID, phone, role, source, req.Body, mediaJSON, req.MessageSid, req.LastStatus, historyJSON,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET
			last_message    = NULLIF($2, ''),
			last_message_at = $3,
			updated_at      = now()
		WHERE phone = $1`,
		phone, req.LastMessageText(), msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("update thread summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	s.mirrorContactStatus(ctx, phone)
	return msg, nil
}

// mirrorContactStatus copies the contact's lifecycle status onto the
// thread. Failures only warn; the append already succeeded.
func (s *Service) mirrorContactStatus(ctx context.Context, phone string) {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations c SET contact_status = ct.status
		FROM contacts ct
		WHERE c.phone = $1 AND ct.phone = c.phone`,
		phone)
	if err != nil {
		s.log.Warn("mirror contact status failed",
			slog.String("phone", phone),
			slog.String("error", err.Error()))
	}
}

// GetThread returns one thread with its messages in append order.
func (s *Service) GetThread(ctx context.Context, phone string) (Thread, error) {
	if s.pool == nil {
		return Thread{}, fmt.Errorf("conversation pool not configured")
	}
	phone = strings.TrimSpace(phone)
	thread, err := s.scanThread(s.pool.QueryRow(ctx, `
		SELECT phone, contact_status, last_message, last_message_at, created_at, updated_at
		FROM conversations WHERE phone = $1`,
		phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Thread{}, ErrNotFound
	}
	if err != nil {
		return Thread{}, fmt.Errorf("get thread: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, phone, role, source, body, media, message_sid, last_status, status_history, created_at
		FROM conversation_messages
		WHERE phone = $1
		ORDER BY created_at, id`,
		phone)
	if err != nil {
		return Thread{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return Thread{}, fmt.Errorf("list messages: %w", err)
		}
		thread.Messages = append(thread.Messages, msg)
	}
	return thread, rows.Err()
}

// ListThreads returns thread summaries, most recently active first.
func (s *Service) ListThreads(ctx context.Context) ([]Thread, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("conversation pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT phone, contact_status, last_message, last_message_at, created_at, updated_at
		FROM conversations
		ORDER BY last_message_at DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()
	items := make([]Thread, 0)
	for rows.Next() {
		thread, err := s.scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		items = append(items, thread)
	}
	return items, rows.Err()
}

func (s *Service) scanThread(row pgx.Row) (Thread, error) {
	var (
		thread        Thread
		contactStatus *string
		lastMessage   *string
		lastMessageAt *time.Time
	)
	err := row.Scan(&thread.Phone, &contactStatus, &lastMessage,
		&lastMessageAt, &thread.CreatedAt, &thread.UpdatedAt)
	if err != nil {
		return Thread{}, err
	}
	if contactStatus != nil {
		thread.ContactStatus = *contactStatus
	}
	if lastMessage != nil {
		thread.LastMessage = *lastMessage
	}
	if lastMessageAt != nil {
		thread.LastMessageAt = *lastMessageAt
	}
	return thread, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		msg        Message
		body       *string
		messageSid *string
		lastStatus *string
	)
	err := row.Scan(
		&msg.ID,
		&msg.Phone,
		&msg.Role,
		&msg.Source,
		&body,
		&msg.Media,
		&messageSid,
		&lastStatus,
		&msg.StatusHistory,
		&msg.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}
	if body != nil {
		msg.Body = *body
	}
	if messageSid != nil {
		msg.MessageSid = *messageSid
	}
	if lastStatus != nil {
		msg.LastStatus = *lastStatus
	}
	if msg.Media == nil {
		msg.Media = []Media{}
	}
	if msg.StatusHistory == nil {
		msg.StatusHistory = []StatusEvent{}
	}
	return msg, nil
}

func normalizeRole(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "agent":
		return strings.ToLower(strings.TrimSpace(role)), nil
	default:
		return "", fmt.Errorf("invalid message role: %q", role)
	}
}

func normalizeSource(source string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "twilio", "bot", "human":
		return strings.ToLower(strings.TrimSpace(source)), nil
	default:
		return "", fmt.Errorf("invalid message source: %q", source)
	}
}
