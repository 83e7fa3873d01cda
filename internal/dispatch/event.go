package dispatch

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/NahuelRC/CallCenter/internal/conversation"
	"github.com/NahuelRC/CallCenter/internal/phone"
)

// Event is one parsed inbound webhook payload.
type Event struct {
	From       string // channel address as received, e.g. whatsapp:+549...
	Phone      string // canonical E.164
	Body       string
	Media      []conversation.Media
	MessageSid string
}

// HasMedia reports whether the event carried attachments.
func (e Event) HasMedia() bool { return len(e.Media) > 0 }

// IsErrorNotification reports whether the payload is a provider error
// callback rather than a user message. Those must be ignored without
// side effects.
func IsErrorNotification(values url.Values) bool {
	return values.Get("Payload") != "" && strings.EqualFold(values.Get("Level"), "ERROR")
}

// ParseEvent extracts an Event from the webhook form payload. The
// sender address comes from the channel From field, falling back to the
// numeric WaId. A payload with no derivable sender is not a message and
// yields ok=false.
func ParseEvent(values url.Values) (Event, bool) {
	from := strings.TrimSpace(values.Get("From"))
	e164 := phone.ToE164(from)
	if !phone.IsValidE164(e164) {
		if waID := strings.TrimSpace(values.Get("WaId")); waID != "" {
			e164 = "+" + strings.TrimPrefix(waID, "+")
			from = phone.ToWhatsApp(e164)
		}
	}
	if !phone.IsValidE164(e164) {
		return Event{}, false
	}

	event := Event{
		From:       from,
		Phone:      e164,
		Body:       values.Get("Body"),
		MessageSid: firstNonEmpty(values.Get("MessageSid"), values.Get("SmsMessageSid")),
	}

	numMedia, _ := strconv.Atoi(values.Get("NumMedia"))
	for i := 0; i < numMedia; i++ {
		mediaURL := strings.TrimSpace(values.Get(fmt.Sprintf("MediaUrl%d", i)))
		if mediaURL == "" {
			continue
		}
		event.Media = append(event.Media, conversation.Media{
			URL:         mediaURL,
			ContentType: values.Get(fmt.Sprintf("MediaContentType%d", i)),
		})
	}
	return event, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
