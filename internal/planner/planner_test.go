package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NahuelRC/CallCenter/internal/config"
)

type fixedPrompt string

func (f fixedPrompt) ActivePrompt() string { return string(f) }

type fakeCompleter struct {
	system string
	user   string
	reply  string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system = system
	f.user = user
	return f.reply, f.err
}

func newTestPlanner(completer Completer) *Planner {
	return New(
		completer,
		fixedPrompt("Sos un vendedor."),
		config.BotConfig{Language: "es", FallbackText: "Disculpá, en breve te respondo."},
		config.OpenAIConfig{},
		slog.Default(),
	)
}

func TestDecodePlan(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Plan
	}{
		{"plain string", "Hola! Te paso el precio.", Plan{Text: "Hola! Te paso el precio."}},
		{
			"structured object",
			`{"text":"Acá van las fotos","wantImage":true,"sku":"GOT-1","imageHint":"frente"}`,
			Plan{Text: "Acá van las fotos", WantImage: true, SKU: "GOT-1", ImageHint: "frente"},
		},
		{
			"fenced json",
			"```json\n{\"text\":\"ok\",\"wantImage\":true}\n```",
			Plan{Text: "ok", WantImage: true},
		},
		{
			"malformed json is a plain string",
			`{"text": "sin cerrar`,
			Plan{Text: `{"text": "sin cerrar`},
		},
		{
			"media urls survive",
			`{"text":"","mediaUrls":["https://res.cloudinary.com/x/image/upload/a.jpg"]}`,
			Plan{MediaURLs: []string{"https://res.cloudinary.com/x/image/upload/a.jpg"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodePlan(tt.raw))
		})
	}
}

func TestPlanBuildsInstructions(t *testing.T) {
	completer := &fakeCompleter{reply: "Hola!"}
	p := newTestPlanner(completer)

	plan := p.Plan(context.Background(), Request{Phone: "+5493416000000", Text: "precio de gotas"})
	assert.Equal(t, "Hola!", plan.Text)
	assert.Contains(t, completer.system, "Sos un vendedor.")
	assert.Contains(t, completer.system, "Responde en español")
	assert.Contains(t, completer.user, "De: +5493416000000")
	assert.Contains(t, completer.user, "precio de gotas")
}

func TestPlanEmptyTurnPlaceholders(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	p := newTestPlanner(completer)

	p.Plan(context.Background(), Request{Phone: "+5491100000000", Text: "", HasMedia: true})
	assert.Contains(t, completer.user, "[El usuario envió un adjunto]")

	p.Plan(context.Background(), Request{Phone: "+5491100000000", Text: "  "})
	assert.Contains(t, completer.user, "[Mensaje vacío]")
}

func TestPlanFallbackOnError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("timeout")}
	p := newTestPlanner(completer)

	plan := p.Plan(context.Background(), Request{Phone: "+5491100000000", Text: "hola"})
	assert.Equal(t, "Disculpá, en breve te respondo.", plan.Text)
	assert.False(t, plan.WantImage)
	assert.Empty(t, plan.MediaURLs)
}

func TestPlanFallbackOnEmptyReply(t *testing.T) {
	completer := &fakeCompleter{reply: "   "}
	p := newTestPlanner(completer)

	plan := p.Plan(context.Background(), Request{Text: "hola"})
	assert.Equal(t, "Disculpá, en breve te respondo.", plan.Text)
}

func TestPlanTruncatesLongInput(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	p := newTestPlanner(completer)

	long := strings.Repeat("a", maxPromptLen+500)
	p.Plan(context.Background(), Request{Text: long})
	require.LessOrEqual(t, len(completer.user), maxPromptLen+len("Mensaje del usuario:\n")+1)
}

func TestEnglishDirective(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	p := New(completer, fixedPrompt(""), config.BotConfig{Language: "en", FallbackText: "f"},
		config.OpenAIConfig{}, slog.Default())

	p.Plan(context.Background(), Request{Text: "hello"})
	assert.Contains(t, completer.system, "Reply in clear, concise English.")
}
