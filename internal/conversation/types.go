package conversation

import "time"

// Media is one attachment reference on a message.
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// StatusEvent is one entry of a message's append-only delivery log.
type StatusEvent struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}

// Message is one item of a conversation thread. Role records who spoke
// (user or agent); Source records through what (twilio, bot or human).
type Message struct {
	ID            string        `json:"id"`
	Phone         string        `json:"phone"`
	Role          string        `json:"role"`
	Source        string        `json:"source"`
	Body          string        `json:"body,omitempty"`
	Media         []Media       `json:"media"`
	MessageSid    string        `json:"messageSid,omitempty"`
	LastStatus    string        `json:"lastStatus,omitempty"`
	StatusHistory []StatusEvent `json:"statusHistory"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Thread is one per-contact conversation, keyed by phone.
type Thread struct {
	Phone         string    `json:"phone"`
	ContactStatus string    `json:"contactStatus,omitempty"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Messages      []Message `json:"messages,omitempty"`
}

// AppendRequest carries one message into AppendMessage. The creation
// timestamp is always server-assigned.
type AppendRequest struct {
	Phone         string
	Role          string
	Source        string
	Body          string
	Media         []Media
	MessageSid    string
	LastStatus    string
	StatusHistory []StatusEvent
}

// mediaPlaceholder stands in for the thread's last-message text when a
// message carries attachments but no body.
const mediaPlaceholder = "[media]"

// LastMessageText is the denormalized thread summary for a message.
func (r AppendRequest) LastMessageText() string {
	if r.Body != "" {
		return r.Body
	}
	if len(r.Media) > 0 {
		return mediaPlaceholder
	}
	return ""
}
