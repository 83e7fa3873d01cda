package planner

// Plan is the structured reply decision for one inbound message. It is
// ephemeral; only the resulting text and media end up persisted.
type Plan struct {
	Text        string   `json:"text"`
	WantImage   bool     `json:"wantImage"`
	SKU         string   `json:"sku,omitempty"`
	ProductName string   `json:"productName,omitempty"`
	ImageHint   string   `json:"imageHint,omitempty"`
	MediaURLs   []string `json:"mediaUrls,omitempty"`
}

// Request carries one user turn into planning. HasMedia distinguishes
// an attachment-only message from a genuinely empty one.
type Request struct {
	Phone    string
	Text     string
	HasMedia bool
}
