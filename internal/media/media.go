// Package media prepares product image URLs for outbound WhatsApp
// delivery: allow-list filtering, delivery transform injection, and
// caption building.
package media

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/NahuelRC/CallCenter/internal/config"
)

// uploadSegment is the path segment of provider-shaped delivery URLs
// after which the transform token is injected.
const uploadSegment = "/upload/"

// Pipeline filters and rewrites image URLs per the configured policy.
type Pipeline struct {
	allowedHosts map[string]struct{}
	transform    string
	printer      *message.Printer
}

// NewPipeline builds a Pipeline from config. When no explicit transform
// token is configured one is derived from the width cap
// (f_auto,q_auto,w_<max>).
func NewPipeline(cfg config.MediaConfig) *Pipeline {
	allowed := cfg.AllowedHosts
	if len(allowed) == 0 {
		allowed = []string{"res.cloudinary.com"}
	}
	hosts := make(map[string]struct{}, len(allowed))
	for _, h := range allowed {
		trimmed := strings.ToLower(strings.TrimSpace(h))
		if trimmed == "" {
			continue
		}
		hosts[trimmed] = struct{}{}
	}

	transform := strings.TrimSpace(cfg.Transform)
	if transform == "" {
		width := cfg.MaxWidth
		if width <= 0 {
			width = 1024
		}
		transform = fmt.Sprintf("f_auto,q_auto,w_%d", width)
	}

	return &Pipeline{
		allowedHosts: hosts,
		transform:    transform,
		printer:      message.NewPrinter(language.MustParse("es-AR")),
	}
}

// FilterAllowed keeps only https URLs whose host is on the allow-list.
// Anything else is dropped: the transport rejects or mishandles
// untrusted URLs.
func (p *Pipeline) FilterAllowed(urls []string) []string {
	kept := make([]string, 0, len(urls))
	for _, raw := range urls {
		if p.Allowed(raw) {
			kept = append(kept, strings.TrimSpace(raw))
		}
	}
	return kept
}

// Allowed reports whether a single URL passes the allow-list.
func (p *Pipeline) Allowed(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if parsed.Scheme != "https" {
		return false
	}
	_, ok := p.allowedHosts[strings.ToLower(parsed.Hostname())]
	return ok
}

// ApplyTransform injects the delivery transform token right after the
// upload path segment. URLs already carrying a transform, and URLs not
// matching the provider shape, are returned unchanged.
func (p *Pipeline) ApplyTransform(raw string) string {
	idx := strings.Index(raw, uploadSegment)
	if idx < 0 {
		return raw
	}
	rest := raw[idx+len(uploadSegment):]
	if hasTransformToken(rest) {
		return raw
	}
	return raw[:idx+len(uploadSegment)] + p.transform + "/" + rest
}

// hasTransformToken reports whether the first path segment after
// /upload/ already looks like a comma-separated transform
// (e.g. "f_auto,q_auto,w_800" or "w_400").
func hasTransformToken(rest string) bool {
	segment, _, _ := strings.Cut(rest, "/")
	if segment == "" {
		return false
	}
	for _, part := range strings.Split(segment, ",") {
		key, _, found := strings.Cut(part, "_")
		if !found {
			return false
		}
		if _, known := transformKeys[key]; !known {
			return false
		}
	}
	return true
}

var transformKeys = map[string]struct{}{
	"a": {}, "b": {}, "c": {}, "dpr": {}, "e": {}, "f": {}, "g": {},
	"h": {}, "l": {}, "o": {}, "q": {}, "r": {}, "t": {}, "w": {},
	"x": {}, "y": {}, "z": {},
}

// BuildCaption renders "name · price[ · Stock: n]" for an attached
// product image. Price uses es-AR grouping with no decimals.
func (p *Pipeline) BuildCaption(name string, price float64, stock *int) string {
	caption := fmt.Sprintf("%s · %s", strings.TrimSpace(name), p.FormatPrice(price))
	if stock != nil {
		caption = fmt.Sprintf("%s · Stock: %d", caption, *stock)
	}
	return caption
}

// FormatPrice renders a currency amount ("$ 1.234"), falling back to a
// plain grouped representation when locale data misbehaves.
func (p *Pipeline) FormatPrice(price float64) string {
	rounded := math.Round(price)
	if p.printer != nil {
		return p.printer.Sprintf("$ %v", number.Decimal(rounded, number.MaxFractionDigits(0)))
	}
	return "$ " + groupThousands(int64(rounded))
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		out.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if out.Len() > 0 {
			out.WriteByte('.')
		}
		out.WriteString(s[i : i+3])
	}
	return out.String()
}
