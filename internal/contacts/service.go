package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no contact exists for a phone number.
var ErrNotFound = errors.New("contact not found")

type Service struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewService(pool *pgxpool.Pool, log *slog.Logger) *Service {
	return &Service{
		pool: pool,
		log:  log.With(slog.String("service", "contacts")),
	}
}

const contactColumns = `phone, name, tags, status, agent_enabled, sandbox_joined, muted_at, last_inbound_at, last_outbound_at, notes, created_at`

func (s *Service) GetByPhone(ctx context.Context, phone string) (Contact, error) {
	if s.pool == nil {
		return Contact{}, fmt.Errorf("contacts pool not configured")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone = $1`,
		strings.TrimSpace(phone))
	contact, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

// Suppressed reports whether the bot must stay silent for this phone.
// Unknown numbers are never suppressed; a stored contact is suppressed
// when the agent has been turned off or the contact is blocked.
func (s *Service) Suppressed(ctx context.Context, phone string) (bool, error) {
	contact, err := s.GetByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return contact.Muted(), nil
}

// TouchInbound records the arrival time of an inbound message. Missing
// contacts are not created; the update is a no-op for unknown numbers.
func (s *Service) TouchInbound(ctx context.Context, phone string) error {
	if s.pool == nil {
		return fmt.Errorf("contacts pool not configured")
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE contacts SET last_inbound_at = now() WHERE phone = $1`,
		strings.TrimSpace(phone))
	if err != nil {
		return fmt.Errorf("touch inbound: %w", err)
	}
	return nil
}

func (s *Service) TouchOutbound(ctx context.Context, phone string) error {
	if s.pool == nil {
		return fmt.Errorf("contacts pool not configured")
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE contacts SET last_outbound_at = now() WHERE phone = $1`,
		strings.TrimSpace(phone))
	if err != nil {
		return fmt.Errorf("touch outbound: %w", err)
	}
	return nil
}

// Upsert creates or updates a contact by phone. Only non-nil request
// fields overwrite stored values.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (Contact, error) {
	if s.pool == nil {
		return Contact{}, fmt.Errorf("contacts pool not configured")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return Contact{}, fmt.Errorf("contact phone is required")
	}
	name := stringValue(req.Name)
	notes := stringValue(req.Notes)
	status := ""
	if req.Status != nil {
		status = normalizeStatus(*req.Status)
	}
	var tags []string
	if req.Tags != nil {
		tags = normalizeTags(*req.Tags)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (phone, name, tags, status, agent_enabled, notes)
		VALUES ($1, $2, COALESCE($3, '{}'), COALESCE(NULLIF($4, ''), 'active'), COALESCE($5, TRUE), $6)
		ON CONFLICT (phone) DO UPDATE SET
			name          = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
			tags          = COALESCE($3, contacts.tags),
			status        = COALESCE(NULLIF($4, ''), contacts.status),
			agent_enabled = COALESCE($5, contacts.agent_enabled),
			notes         = COALESCE(NULLIF(EXCLUDED.notes, ''), contacts.notes)
		RETURNING `+contactColumns,
		phone, name, tags, status, req.AgentEnabled, notes)
	contact, err := scanContact(row)
	if err != nil {
		return Contact{}, fmt.Errorf("upsert contact: %w", err)
	}
	return contact, nil
}

// SetAgentEnabled flips the mute gate for an existing contact and stamps
// muted_at when the agent is turned off.
func (s *Service) SetAgentEnabled(ctx context.Context, phone string, enabled bool) (Contact, error) {
	if s.pool == nil {
		return Contact{}, fmt.Errorf("contacts pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE contacts SET
			agent_enabled = $2,
			muted_at      = CASE WHEN $2 THEN NULL ELSE now() END
		WHERE phone = $1
		RETURNING `+contactColumns,
		strings.TrimSpace(phone), enabled)
	contact, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("set agent enabled: %w", err)
	}
	return contact, nil
}

func (s *Service) List(ctx context.Context) ([]Contact, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("contacts pool not configured")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	items := make([]Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		items = append(items, contact)
	}
	return items, rows.Err()
}

func scanContact(row pgx.Row) (Contact, error) {
	var (
		contact        Contact
		name           *string
		mutedAt        *time.Time
		lastInboundAt  *time.Time
		lastOutboundAt *time.Time
		notes          *string
	)
	err := row.Scan(
		&contact.Phone,
		&name,
		&contact.Tags,
		&contact.Status,
		&contact.AgentEnabled,
		&contact.SandboxJoined,
		&mutedAt,
		&lastInboundAt,
		&lastOutboundAt,
		&notes,
		&contact.CreatedAt,
	)
	if err != nil {
		return Contact{}, err
	}
	contact.Name = stringValue(name)
	contact.Notes = stringValue(notes)
	contact.MutedAt = timeValue(mutedAt)
	contact.LastInboundAt = timeValue(lastInboundAt)
	contact.LastOutboundAt = timeValue(lastOutboundAt)
	if contact.Tags == nil {
		contact.Tags = []string{}
	}
	return contact, nil
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func timeValue(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}

func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func normalizeStatus(status string) string {
	trimmed := strings.ToLower(strings.TrimSpace(status))
	switch trimmed {
	case "active", "paused", "blocked":
		return trimmed
	default:
		return "active"
	}
}
