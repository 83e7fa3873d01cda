package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/NahuelRC/CallCenter/internal/config"
	"github.com/NahuelRC/CallCenter/internal/intent"
	"github.com/NahuelRC/CallCenter/internal/media"
)

// Source is the read surface the resolver needs from the product store.
type Source interface {
	GetBySKU(ctx context.Context, sku string) (Product, error)
	ListActive(ctx context.Context) ([]Product, error)
}

// Resolver finds the product to show for a planner hint or a detected
// category, and picks the image URLs to attach.
type Resolver struct {
	source        Source
	detector      *intent.Detector
	media         *media.Pipeline
	imageFallback bool
	log           *slog.Logger
}

func NewResolver(source Source, detector *intent.Detector, pipeline *media.Pipeline, cfg config.CatalogConfig, log *slog.Logger) *Resolver {
	return &Resolver{
		source:        source,
		detector:      detector,
		media:         pipeline,
		imageFallback: cfg.ImageFallbackEnabled(),
		log:           log.With(slog.String("service", "catalog")),
	}
}

// FindProduct resolves a Lookup to at most one active product. SKU wins
// outright; otherwise the active set is filtered by query and category
// together, then by category alone when the combined filter comes up
// empty. The category filter is conjunctive: a product must match the
// detected category's synonyms and must not match any other category's.
func (r *Resolver) FindProduct(ctx context.Context, lookup Lookup) (Product, bool, error) {
	if sku := strings.TrimSpace(lookup.SKU); sku != "" {
		product, err := r.source.GetBySKU(ctx, sku)
		if err == nil && product.Active {
			return product, true, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Product{}, false, err
		}
	}

	query := intent.Normalize(strings.TrimSpace(lookup.Query))
	category := intent.Normalize(strings.TrimSpace(lookup.Category))
	if query == "" && category == "" {
		return Product{}, false, nil
	}

	products, err := r.source.ListActive(ctx)
	if err != nil {
		return Product{}, false, err
	}

	positive := r.detector.CategorySynonyms(category)
	negative := r.negativeSynonyms(category)

	for _, product := range products {
		if query != "" && !matchesText(product, query) {
			continue
		}
		if category != "" && !r.matchesCategory(product, positive, negative) {
			continue
		}
		return product, true, nil
	}

	// An imprecise free-text query must not block a confident category
	// match, so retry on the category filters alone.
	if query != "" && category != "" {
		for _, product := range products {
			if r.matchesCategory(product, positive, negative) {
				return product, true, nil
			}
		}
	}
	return Product{}, false, nil
}

// FindWithImage is the availability fallback: any active product with at
// least one allow-listed image, preferring one that passes the category
// filters when a category was detected. Disabled by config it reports
// not found.
func (r *Resolver) FindWithImage(ctx context.Context, category string) (Product, bool, error) {
	if !r.imageFallback {
		return Product{}, false, nil
	}
	products, err := r.source.ListActive(ctx)
	if err != nil {
		return Product{}, false, err
	}
	category = intent.Normalize(strings.TrimSpace(category))
	if category != "" {
		positive := r.detector.CategorySynonyms(category)
		negative := r.negativeSynonyms(category)
		for _, product := range products {
			if r.matchesCategory(product, positive, negative) && r.hasAllowedImage(product) {
				return product, true, nil
			}
		}
	}
	for _, product := range products {
		if r.hasAllowedImage(product) {
			return product, true, nil
		}
	}
	return Product{}, false, nil
}

// PickImages returns up to maxCount transformed, allow-listed image
// URLs for a product. Images whose alt text matches the hint sort
// first; the stored order is kept otherwise.
func (r *Resolver) PickImages(product Product, maxCount int, hint string) []string {
	if maxCount <= 0 {
		maxCount = 1
	}
	images := make([]Image, 0, len(product.Images))
	for _, img := range product.Images {
		if r.media.Allowed(img.URL) {
			images = append(images, img)
		}
	}
	if normalized := intent.Normalize(strings.TrimSpace(hint)); normalized != "" {
		sort.SliceStable(images, func(i, j int) bool {
			return altMatches(images[i], normalized) && !altMatches(images[j], normalized)
		})
	}
	if len(images) > maxCount {
		images = images[:maxCount]
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, r.media.ApplyTransform(img.URL))
	}
	return urls
}

func (r *Resolver) negativeSynonyms(category string) []string {
	if category == "" {
		return nil
	}
	positive := map[string]struct{}{}
	for _, s := range r.detector.CategorySynonyms(category) {
		positive[s] = struct{}{}
	}
	var negative []string
	for _, other := range r.detector.Categories() {
		if other == category {
			continue
		}
		for _, s := range r.detector.CategorySynonyms(other) {
			if _, shared := positive[s]; !shared {
				negative = append(negative, s)
			}
		}
	}
	return negative
}

func (r *Resolver) matchesCategory(product Product, positive, negative []string) bool {
	return matchesAny(product, positive) && !matchesAny(product, negative)
}

func (r *Resolver) hasAllowedImage(product Product) bool {
	for _, img := range product.Images {
		if r.media.Allowed(img.URL) {
			return true
		}
	}
	return false
}

func altMatches(img Image, hint string) bool {
	return strings.Contains(intent.Normalize(img.Alt), hint)
}

// matchesText reports whether the normalized query appears in the
// product name or any tag.
func matchesText(product Product, query string) bool {
	if strings.Contains(intent.Normalize(product.Name), query) {
		return true
	}
	for _, tag := range product.Tags {
		if strings.Contains(intent.Normalize(tag), query) {
			return true
		}
	}
	return false
}

func matchesAny(product Product, synonyms []string) bool {
	name := intent.Normalize(product.Name)
	for _, synonym := range synonyms {
		if strings.Contains(name, synonym) {
			return true
		}
		for _, tag := range product.Tags {
			if strings.Contains(intent.Normalize(tag), synonym) {
				return true
			}
		}
	}
	return false
}
