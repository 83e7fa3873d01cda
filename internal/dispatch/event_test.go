package dispatch

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	values := url.Values{
		"From":              {"whatsapp:+5493416000000"},
		"Body":              {"hola, precio de gotas?"},
		"MessageSid":        {"SM123"},
		"NumMedia":          {"2"},
		"MediaUrl0":         {"https://api.twilio.com/media/0"},
		"MediaContentType0": {"image/jpeg"},
		"MediaUrl1":         {"https://api.twilio.com/media/1"},
		"MediaContentType1": {"image/png"},
	}

	event, ok := ParseEvent(values)
	require.True(t, ok)
	assert.Equal(t, "whatsapp:+5493416000000", event.From)
	assert.Equal(t, "+5493416000000", event.Phone)
	assert.Equal(t, "hola, precio de gotas?", event.Body)
	assert.Equal(t, "SM123", event.MessageSid)
	require.Len(t, event.Media, 2)
	assert.Equal(t, "image/png", event.Media[1].ContentType)
	assert.True(t, event.HasMedia())
}

func TestParseEventWaIdFallback(t *testing.T) {
	event, ok := ParseEvent(url.Values{"WaId": {"5493416000000"}, "Body": {"hola"}})
	require.True(t, ok)
	assert.Equal(t, "+5493416000000", event.Phone)
	assert.Equal(t, "whatsapp:+5493416000000", event.From)
}

func TestParseEventSmsSidFallback(t *testing.T) {
	event, ok := ParseEvent(url.Values{
		"From":          {"whatsapp:+5493416000000"},
		"SmsMessageSid": {"SM987"},
	})
	require.True(t, ok)
	assert.Equal(t, "SM987", event.MessageSid)
}

func TestParseEventNoSender(t *testing.T) {
	_, ok := ParseEvent(url.Values{"Body": {"hola"}})
	assert.False(t, ok)

	_, ok = ParseEvent(url.Values{"From": {"whatsapp:not-a-number"}})
	assert.False(t, ok)
}

func TestIsErrorNotification(t *testing.T) {
	assert.True(t, IsErrorNotification(url.Values{
		"Level":   {"ERROR"},
		"Payload": {`{"error_code":"63016"}`},
	}))
	assert.False(t, IsErrorNotification(url.Values{"Level": {"ERROR"}}))
	assert.False(t, IsErrorNotification(url.Values{
		"From": {"whatsapp:+5493416000000"},
		"Body": {"hola"},
	}))
}
