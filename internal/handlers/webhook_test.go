package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NahuelRC/CallCenter/internal/config"
	"github.com/NahuelRC/CallCenter/internal/dispatch"
	"github.com/NahuelRC/CallCenter/internal/logger"
)

type recordingProcessor struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (r *recordingProcessor) Process(_ context.Context, event dispatch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingProcessor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func postWebhook(t *testing.T, h *WebhookHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Inbound(e.NewContext(req, rec)))
	return rec
}

func TestWebhookAcksAndEnqueues(t *testing.T) {
	processor := &recordingProcessor{}
	d := dispatch.NewDispatcher(processor, config.DispatchConfig{}, logger.L)
	d.Start(context.Background())
	defer d.Stop()

	h := NewWebhookHandler(d, logger.L)
	rec := postWebhook(t, h, url.Values{
		"From": {"whatsapp:+5493416000000"},
		"Body": {"hola"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Eventually(t, func() bool { return processor.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestWebhookIgnoresErrorNotifications(t *testing.T) {
	processor := &recordingProcessor{}
	d := dispatch.NewDispatcher(processor, config.DispatchConfig{}, logger.L)
	d.Start(context.Background())
	defer d.Stop()

	h := NewWebhookHandler(d, logger.L)
	rec := postWebhook(t, h, url.Values{
		"Level":     {"ERROR"},
		"Payload":   {`{"error_code":"63016"}`},
		"ErrorCode": {"63016"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, processor.count())
}

func TestWebhookIgnoresPayloadWithoutSender(t *testing.T) {
	processor := &recordingProcessor{}
	d := dispatch.NewDispatcher(processor, config.DispatchConfig{}, logger.L)
	d.Start(context.Background())
	defer d.Stop()

	h := NewWebhookHandler(d, logger.L)
	rec := postWebhook(t, h, url.Values{"Body": {"hola"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, processor.count())
}

func TestWebhookStillAcksWhenDispatcherStopped(t *testing.T) {
	d := dispatch.NewDispatcher(&recordingProcessor{}, config.DispatchConfig{}, logger.L)

	h := NewWebhookHandler(d, logger.L)
	rec := postWebhook(t, h, url.Values{
		"From": {"whatsapp:+5493416000000"},
		"Body": {"hola"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
