// Package intent derives user intent from free-form WhatsApp text:
// whether an image was asked for, one image or several, and which
// product category or search query the text points at.
package intent

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/NahuelRC/CallCenter/internal/config"
)

// Defaults used when the corresponding TOML table is absent. Keywords are
// compared after diacritic folding, so accentless forms suffice.
var (
	defaultImageKeywords = []string{
		"foto", "fotos", "imagen", "imagenes", "catalogo", "catálogo",
	}
	defaultPluralKeywords = []string{"fotos", "imagenes", "imágenes"}
	defaultStopwords      = []string{
		"el", "la", "los", "las", "un", "una", "unos", "unas", "de", "del",
		"que", "por", "para", "con", "sin", "como", "quiero", "quisiera",
		"tenes", "tienen", "hay", "ver", "dame", "mandame", "pasame",
		"enviame", "favor", "hola", "buenas", "gracias", "me", "te", "mi",
		"tu", "su", "y", "o", "a", "en", "es", "al", "tal",
	}
	defaultCategories = map[string][]string{
		"gotas":    {"gotas", "gota", "gotero", "goteros", "tintura", "tinturas"},
		"capsulas": {"capsulas", "capsula", "cápsulas", "cápsula", "pastillas", "pastilla"},
		"semillas": {"semillas", "semilla"},
	}
)

// Detector answers intent questions about normalized user text. All
// methods are pure; the keyword tables are fixed at construction.
type Detector struct {
	imageWords  map[string]struct{}
	pluralWords map[string]struct{}
	stopwords   map[string]struct{}
	categories  []category
}

type category struct {
	key      string
	synonyms []string
}

// NewDetector builds a Detector from config, falling back to the default
// Spanish keyword tables for any table left empty.
func NewDetector(cfg config.IntentConfig) *Detector {
	imageWords := cfg.ImageKeywords
	if len(imageWords) == 0 {
		imageWords = defaultImageKeywords
	}
	pluralWords := cfg.PluralKeywords
	if len(pluralWords) == 0 {
		pluralWords = defaultPluralKeywords
	}
	stopwords := cfg.Stopwords
	if len(stopwords) == 0 {
		stopwords = defaultStopwords
	}
	categoryTable := cfg.Categories
	if len(categoryTable) == 0 {
		categoryTable = defaultCategories
	}

	d := &Detector{
		imageWords:  wordSet(imageWords),
		pluralWords: wordSet(pluralWords),
		stopwords:   wordSet(stopwords),
	}

	// Category order must be deterministic: map iteration is not.
	keys := make([]string, 0, len(categoryTable))
	for key := range categoryTable {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		synonyms := make([]string, 0, len(categoryTable[key]))
		for _, s := range categoryTable[key] {
			synonyms = append(synonyms, Normalize(s))
		}
		d.categories = append(d.categories, category{key: Normalize(key), synonyms: synonyms})
	}
	return d
}

// Normalize lowercases s and strips diacritics ("Cápsulas" -> "capsulas").
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer(), strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// IsImageRequest reports whether text asks for a photo, image, the
// catalog, or names a known product category.
func (d *Detector) IsImageRequest(text string) bool {
	for _, token := range tokenize(Normalize(text)) {
		if _, ok := d.imageWords[token]; ok {
			return true
		}
	}
	for _, c := range d.categories {
		if d.matchCategory(text, c) {
			return true
		}
	}
	return false
}

// IsPluralRequest reports whether text contains a plural image word
// ("fotos", "imagenes"), used to return up to 3 images instead of 1.
func (d *Detector) IsPluralRequest(text string) bool {
	for _, token := range tokenize(Normalize(text)) {
		if _, ok := d.pluralWords[token]; ok {
			return true
		}
	}
	return false
}

// DetectCategory matches text against the category synonym table,
// accent-insensitively. The first matching category (in sorted key
// order) wins; no match returns "".
func (d *Detector) DetectCategory(text string) string {
	for _, c := range d.categories {
		if d.matchCategory(text, c) {
			return c.key
		}
	}
	return ""
}

// ExtractQuery derives a catalog search query from text. A detected
// category is returned directly: category synonyms take priority over
// generic free text. Otherwise the fragment following "de"/"del" is
// captured; otherwise the 4 longest non-stopword tokens are joined.
// Returns "" when no usable tokens remain.
func (d *Detector) ExtractQuery(text string) string {
	if cat := d.DetectCategory(text); cat != "" {
		return cat
	}

	normalized := Normalize(text)
	if fragment := captureAfterDe(normalized, d.stopwords); fragment != "" {
		return fragment
	}

	tokens := make([]string, 0, 8)
	for _, token := range tokenize(normalized) {
		if _, stop := d.stopwords[token]; stop {
			continue
		}
		if len(token) < 3 {
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return ""
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})
	if len(tokens) > 4 {
		tokens = tokens[:4]
	}
	return strings.Join(tokens, " ")
}

// Categories returns the configured category keys in match order.
func (d *Detector) Categories() []string {
	keys := make([]string, 0, len(d.categories))
	for _, c := range d.categories {
		keys = append(keys, c.key)
	}
	return keys
}

// CategorySynonyms returns the normalized synonym list for a category
// key, including the key itself. Unknown categories return nil.
func (d *Detector) CategorySynonyms(key string) []string {
	normalized := Normalize(key)
	for _, c := range d.categories {
		if c.key != normalized {
			continue
		}
		synonyms := make([]string, 0, len(c.synonyms)+1)
		synonyms = append(synonyms, c.key)
		for _, s := range c.synonyms {
			if s != c.key {
				synonyms = append(synonyms, s)
			}
		}
		return synonyms
	}
	return nil
}

func (d *Detector) matchCategory(text string, c category) bool {
	normalized := Normalize(text)
	tokens := tokenize(normalized)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		tokenSet[token] = struct{}{}
	}
	for _, synonym := range c.synonyms {
		if strings.ContainsRune(synonym, ' ') {
			if strings.Contains(" "+strings.Join(tokens, " ")+" ", " "+synonym+" ") {
				return true
			}
			continue
		}
		if _, ok := tokenSet[synonym]; ok {
			return true
		}
	}
	return false
}

// captureAfterDe returns the cleaned fragment following the last
// "de"/"del" token, with leading articles and stopword-only tails removed.
func captureAfterDe(normalized string, stopwords map[string]struct{}) string {
	tokens := tokenize(normalized)
	cut := -1
	for i, token := range tokens {
		if token == "de" || token == "del" {
			cut = i
		}
	}
	if cut < 0 || cut+1 >= len(tokens) {
		return ""
	}
	rest := make([]string, 0, len(tokens)-cut-1)
	for _, token := range tokens[cut+1:] {
		if _, stop := stopwords[token]; stop && len(rest) == 0 {
			continue // leading article ("las semillas" -> "semillas")
		}
		rest = append(rest, token)
	}
	return strings.Join(rest, " ")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		normalized := Normalize(strings.TrimSpace(w))
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}
