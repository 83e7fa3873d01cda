package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NahuelRC/CallCenter/internal/catalog"
	"github.com/NahuelRC/CallCenter/internal/config"
	"github.com/NahuelRC/CallCenter/internal/conversation"
	"github.com/NahuelRC/CallCenter/internal/intent"
	"github.com/NahuelRC/CallCenter/internal/media"
	"github.com/NahuelRC/CallCenter/internal/phone"
	"github.com/NahuelRC/CallCenter/internal/planner"
	"github.com/NahuelRC/CallCenter/internal/twilio"
)

// ContactGate is the contact surface the pipeline consumes: the mute
// decision plus best-effort activity timestamps.
type ContactGate interface {
	Suppressed(ctx context.Context, phone string) (bool, error)
	TouchInbound(ctx context.Context, phone string) error
	TouchOutbound(ctx context.Context, phone string) error
}

// Appender persists one message onto a conversation thread.
type Appender interface {
	AppendMessage(ctx context.Context, req conversation.AppendRequest) (conversation.Message, error)
}

// ReplyPlanner produces the reply plan for one user turn. Plan never
// fails; it degrades to Fallback internally.
type ReplyPlanner interface {
	Plan(ctx context.Context, req planner.Request) planner.Plan
	Fallback() planner.Plan
}

// ProductResolver is the catalog surface used for image resolution.
type ProductResolver interface {
	FindProduct(ctx context.Context, lookup catalog.Lookup) (catalog.Product, bool, error)
	FindWithImage(ctx context.Context, category string) (catalog.Product, bool, error)
	PickImages(product catalog.Product, maxCount int, hint string) []string
}

// Pinger checks that the persistence layer is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pipeline runs the inbound steps strictly in order, each under its own
// timeout. No step failure aborts the remaining steps: every failure is
// logged and replaced by a safe default.
type Pipeline struct {
	contacts ContactGate
	store    Appender
	planner  ReplyPlanner
	catalog  ProductResolver
	media    *media.Pipeline
	detector *intent.Detector
	sender   twilio.Sender
	pinger   Pinger

	bot      config.BotConfig
	timeouts config.DispatchConfig
	log      *slog.Logger
}

func NewPipeline(
	contacts ContactGate,
	store Appender,
	replyPlanner ReplyPlanner,
	resolver ProductResolver,
	mediaPipeline *media.Pipeline,
	detector *intent.Detector,
	sender twilio.Sender,
	pinger Pinger,
	botCfg config.BotConfig,
	dispatchCfg config.DispatchConfig,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		contacts: contacts,
		store:    store,
		planner:  replyPlanner,
		catalog:  resolver,
		media:    mediaPipeline,
		detector: detector,
		sender:   sender,
		pinger:   pinger,
		bot:      botCfg,
		timeouts: dispatchCfg,
		log:      log.With(slog.String("service", "dispatch")),
	}
}

// Process handles one inbound event end to end. It never returns an
// error: the webhook was already acknowledged, so every outcome here is
// terminal (success or degraded).
func (p *Pipeline) Process(ctx context.Context, event Event) {
	log := p.log.With(slog.String("phone", event.Phone))

	if event.Phone == "" {
		log.Warn("event without sender address ignored")
		return
	}

	if p.pinger != nil {
		if err := p.withTimeout(ctx, p.timeouts.ContactTimeout(), func(ctx context.Context) error {
			return p.pinger.Ping(ctx)
		}); err != nil {
			log.Warn("store unreachable, continuing degraded", slog.String("error", err.Error()))
		}
	}

	suppressed := p.checkSuppressed(ctx, log, event.Phone)

	p.persistInbound(ctx, log, event)
	p.touchInbound(ctx, log, event.Phone)

	if suppressed {
		log.Info("contact muted, inbound stored without reply")
		return
	}

	plan := p.planReply(ctx, event)
	p.forceImageOverride(&plan, event.Body)

	var (
		urls    []string
		product catalog.Product
		found   bool
	)
	if plan.WantImage {
		urls, product, found = p.resolveMedia(ctx, log, plan, event.Body)
	}

	text := p.composeText(plan, urls, product, found)

	sid := p.send(ctx, log, event, text, urls)
	p.persistOutbound(ctx, log, event.Phone, text, urls, sid)
	if sid != "" {
		p.touchOutbound(ctx, log, event.Phone)
	}
}

// SendDirect is the operator path: a human-authored message pushed to a
// contact outside the automated pipeline. The mute gate does not apply.
func (p *Pipeline) SendDirect(ctx context.Context, rawPhone, text string) (conversation.Message, error) {
	e164 := phone.ToE164(strings.TrimSpace(rawPhone))
	if !phone.IsValidE164(e164) {
		return conversation.Message{}, fmt.Errorf("invalid phone: %q", rawPhone)
	}
	if strings.TrimSpace(text) == "" {
		return conversation.Message{}, fmt.Errorf("message text is required")
	}

	var sid string
	err := p.withTimeout(ctx, p.timeouts.SendTimeout(), func(ctx context.Context) error {
		var sendErr error
		sid, sendErr = p.sender.Send(ctx, twilio.SendRequest{
			To:   phone.ToWhatsApp(e164),
			Body: text,
		})
		return sendErr
	})
	if err != nil {
		return conversation.Message{}, fmt.Errorf("send direct: %w", err)
	}

	var msg conversation.Message
	appendErr := p.withTimeout(ctx, p.timeouts.AppendTimeout(), func(ctx context.Context) error {
		var err error
		msg, err = p.store.AppendMessage(ctx, conversation.AppendRequest{
			Phone:         e164,
			Role:          "agent",
			Source:        "human",
			Body:          text,
			MessageSid:    sid,
			LastStatus:    "queued",
			StatusHistory: []conversation.StatusEvent{{Status: "queued", At: time.Now().UTC()}},
		})
		return err
	})
	if appendErr != nil {
		p.log.Warn("direct send stored nothing",
			slog.String("phone", e164),
			slog.String("error", appendErr.Error()))
	}
	return msg, nil
}

func (p *Pipeline) checkSuppressed(ctx context.Context, log *slog.Logger, e164 string) bool {
	var suppressed bool
	err := p.withTimeout(ctx, p.timeouts.ContactTimeout(), func(ctx context.Context) error {
		var err error
		suppressed, err = p.contacts.Suppressed(ctx, e164)
		return err
	})
	if err != nil {
		// An unreachable gate never mutes: absence of a verdict means reply.
		log.Warn("mute check failed, treating as not muted", slog.String("error", err.Error()))
		return false
	}
	return suppressed
}

func (p *Pipeline) persistInbound(ctx context.Context, log *slog.Logger, event Event) {
	err := p.withTimeout(ctx, p.timeouts.AppendTimeout(), func(ctx context.Context) error {
		_, err := p.store.AppendMessage(ctx, conversation.AppendRequest{
			Phone:      event.Phone,
			Role:       "user",
			Source:     "twilio",
			Body:       event.Body,
			Media:      event.Media,
			MessageSid: event.MessageSid,
		})
		return err
	})
	if err != nil {
		log.Warn("inbound append skipped", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) planReply(ctx context.Context, event Event) planner.Plan {
	planCtx, cancel := context.WithTimeout(ctx, p.timeouts.PlanTimeout())
	defer cancel()
	return p.planner.Plan(planCtx, planner.Request{
		Phone:    event.Phone,
		Text:     event.Body,
		HasMedia: event.HasMedia(),
	})
}

// forceImageOverride honors an image request expressed in the user's
// own words even when the planner missed it.
func (p *Pipeline) forceImageOverride(plan *planner.Plan, body string) {
	if plan.WantImage || !p.detector.IsImageRequest(body) {
		return
	}
	plan.WantImage = true
	if plan.SKU == "" && plan.ProductName == "" {
		plan.ProductName = p.detector.ExtractQuery(body)
	}
}

func (p *Pipeline) resolveMedia(ctx context.Context, log *slog.Logger, plan planner.Plan, body string) ([]string, catalog.Product, bool) {
	maxCount := 1
	if p.detector.IsPluralRequest(body) {
		maxCount = p.bot.MaxImages
	}

	// Ready-made URLs from the plan go through the same allow-list and
	// transform as catalog images.
	urls := p.media.FilterAllowed(plan.MediaURLs)
	if len(urls) > maxCount {
		urls = urls[:maxCount]
	}
	for i, u := range urls {
		urls[i] = p.media.ApplyTransform(u)
	}
	if len(urls) > 0 {
		return urls, catalog.Product{}, false
	}

	category := p.detector.DetectCategory(body)
	lookup := catalog.Lookup{
		SKU:      plan.SKU,
		Query:    firstNonEmpty(plan.ProductName, p.detector.ExtractQuery(body)),
		Category: category,
	}

	var (
		product catalog.Product
		found   bool
	)
	err := p.withTimeout(ctx, p.timeouts.CatalogTimeout(), func(ctx context.Context) error {
		var err error
		product, found, err = p.catalog.FindProduct(ctx, lookup)
		return err
	})
	if err != nil {
		log.Warn("catalog lookup failed", slog.String("error", err.Error()))
	}

	if !found {
		err := p.withTimeout(ctx, p.timeouts.CatalogTimeout(), func(ctx context.Context) error {
			var err error
			product, found, err = p.catalog.FindWithImage(ctx, category)
			return err
		})
		if err != nil {
			log.Warn("catalog image fallback failed", slog.String("error", err.Error()))
		}
	}
	if !found {
		return nil, catalog.Product{}, false
	}
	return p.catalog.PickImages(product, maxCount, plan.ImageHint), product, true
}

// composeText guarantees the outbound payload always carries text or
// media, preferring the plan's own words.
func (p *Pipeline) composeText(plan planner.Plan, urls []string, product catalog.Product, found bool) string {
	if plan.Text != "" {
		return plan.Text
	}
	if len(urls) > 0 {
		if found {
			if caption := p.media.BuildCaption(product.Name, product.Price, product.Stock); caption != "" {
				return caption
			}
		}
		return p.bot.SendingImage
	}
	if plan.WantImage {
		return p.bot.NoPhotoText
	}
	return p.planner.Fallback().Text
}

func (p *Pipeline) send(ctx context.Context, log *slog.Logger, event Event, text string, urls []string) string {
	var sid string
	err := p.withTimeout(ctx, p.timeouts.SendTimeout(), func(ctx context.Context) error {
		var sendErr error
		sid, sendErr = p.sender.Send(ctx, twilio.SendRequest{
			To:        phone.ToWhatsApp(event.Phone),
			Body:      text,
			MediaURLs: urls,
		})
		return sendErr
	})
	if err != nil {
		log.Error("outbound send failed", slog.String("error", err.Error()))
		return ""
	}
	return sid
}

func (p *Pipeline) persistOutbound(ctx context.Context, log *slog.Logger, e164, text string, urls []string, sid string) {
	status := "queued"
	if sid == "" {
		status = "failed"
	}
	outMedia := make([]conversation.Media, 0, len(urls))
	for _, u := range urls {
		outMedia = append(outMedia, conversation.Media{URL: u})
	}
	err := p.withTimeout(ctx, p.timeouts.AppendTimeout(), func(ctx context.Context) error {
		_, err := p.store.AppendMessage(ctx, conversation.AppendRequest{
			Phone:         e164,
			Role:          "agent",
			Source:        "bot",
			Body:          text,
			Media:         outMedia,
			MessageSid:    sid,
			LastStatus:    status,
			StatusHistory: []conversation.StatusEvent{{Status: status, At: time.Now().UTC()}},
		})
		return err
	})
	if err != nil {
		log.Warn("outbound append skipped", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) touchInbound(ctx context.Context, log *slog.Logger, e164 string) {
	if err := p.withTimeout(ctx, p.timeouts.TouchTimeout(), func(ctx context.Context) error {
		return p.contacts.TouchInbound(ctx, e164)
	}); err != nil {
		log.Warn("touch inbound failed", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) touchOutbound(ctx context.Context, log *slog.Logger, e164 string) {
	if err := p.withTimeout(ctx, p.timeouts.TouchTimeout(), func(ctx context.Context) error {
		return p.contacts.TouchOutbound(ctx, e164)
	}); err != nil {
		log.Warn("touch outbound failed", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
