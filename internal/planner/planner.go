package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/NahuelRC/CallCenter/internal/config"
	"github.com/NahuelRC/CallCenter/internal/prompt"
)

// maxPromptLen caps both the system and user instructions before the
// completion call.
const maxPromptLen = 4000

const (
	attachmentPlaceholder = "[El usuario envió un adjunto]"
	emptyPlaceholder      = "[Mensaje vacío]"
)

// Planner turns one inbound user turn into a reply Plan. Every failure
// path (timeout, transport error, malformed response, missing
// credentials) collapses into the configured fallback text; Plan never
// returns an error to the pipeline.
type Planner struct {
	completer Completer
	prompts   prompt.Source
	language  string
	fallback  string
	timeout   time.Duration
	log       *slog.Logger
}

func New(completer Completer, prompts prompt.Source, botCfg config.BotConfig, aiCfg config.OpenAIConfig, log *slog.Logger) *Planner {
	return &Planner{
		completer: completer,
		prompts:   prompts,
		language:  botCfg.Language,
		fallback:  botCfg.FallbackText,
		timeout:   aiCfg.Timeout(),
		log:       log.With(slog.String("service", "planner")),
	}
}

func (p *Planner) Plan(ctx context.Context, req Request) Plan {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.completer.Complete(ctx, p.systemInstruction(), p.userInstruction(req))
	if err != nil {
		p.log.Warn("completion failed, using fallback",
			slog.String("phone", req.Phone),
			slog.String("error", err.Error()))
		return p.Fallback()
	}
	plan := DecodePlan(raw)
	if plan.Text == "" && len(plan.MediaURLs) == 0 && !plan.WantImage {
		return p.Fallback()
	}
	return plan
}

// Fallback is the fixed safe plan used whenever planning fails.
func (p *Planner) Fallback() Plan {
	return Plan{Text: p.fallback}
}

func (p *Planner) systemInstruction() string {
	base := truncate(p.prompts.ActivePrompt(), maxPromptLen)
	directive := "Responde en español de forma clara y concisa."
	if p.language == "en" {
		directive = "Reply in clear, concise English."
	}
	return strings.TrimSpace(base + "\n\n" + directive)
}

func (p *Planner) userInstruction(req Request) string {
	text := truncate(strings.TrimSpace(req.Text), maxPromptLen)
	if text == "" {
		// The completion call must never receive an empty turn.
		if req.HasMedia {
			text = attachmentPlaceholder
		} else {
			text = emptyPlaceholder
		}
	}
	lines := make([]string, 0, 3)
	if req.Phone != "" {
		lines = append(lines, "De: "+req.Phone)
	}
	lines = append(lines, "Mensaje del usuario:", text)
	return strings.Join(lines, "\n")
}

// DecodePlan normalizes the completion output. The capability answers
// in one of two shapes: a plain reply string, or a JSON object carrying
// the plan fields. Malformed JSON is treated as a plain string.
func DecodePlan(raw string) Plan {
	cleaned := strings.TrimSpace(stripCodeFence(raw))
	if strings.HasPrefix(cleaned, "{") {
		var decoded Plan
		if err := json.Unmarshal([]byte(cleaned), &decoded); err == nil {
			decoded.Text = strings.TrimSpace(decoded.Text)
			return decoded
		}
	}
	return Plan{Text: cleaned}
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
