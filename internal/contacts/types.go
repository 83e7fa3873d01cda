package contacts

import "time"

// Contact is a known WhatsApp counterpart, keyed by E.164 phone number.
type Contact struct {
	Phone          string    `json:"phone"`
	Name           string    `json:"name,omitempty"`
	Tags           []string  `json:"tags"`
	Status         string    `json:"status"`
	AgentEnabled   bool      `json:"agentEnabled"`
	SandboxJoined  bool      `json:"sandboxJoined"`
	MutedAt        time.Time `json:"mutedAt,omitempty"`
	LastInboundAt  time.Time `json:"lastInboundAt,omitempty"`
	LastOutboundAt time.Time `json:"lastOutboundAt,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Muted reports whether automated replies must be withheld for this
// contact. Blocking wins over the agent toggle.
func (c Contact) Muted() bool {
	return !c.AgentEnabled || c.Status == "blocked"
}

// UpsertRequest carries the mutable fields for Create/Update by phone.
// Nil pointer fields keep the stored value.
type UpsertRequest struct {
	Phone        string
	Name         *string
	Tags         *[]string
	Status       *string
	AgentEnabled *bool
	Notes        *string
}
