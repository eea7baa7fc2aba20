package model

// Product is a catalog item. It is the payload carried by similarity search
// results.
type Product struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category,omitempty"`
	Material      string         `json:"material,omitempty"`
	Style         string         `json:"style,omitempty"`
	Weight        float64        `json:"weight,omitempty"`
	Price         float64        `json:"price"`
	DesignDetails map[string]any `json:"design_details,omitempty"`
	Images        []string       `json:"images,omitempty"`
	StockCount    int            `json:"stock_count"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool { return p.StockCount > 0 }

// CandidateItem is one similarity search hit.
type CandidateItem struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// Retrieval is the output of the retrieval pipeline.
type Retrieval struct {
	Items      []CandidateItem `json:"products"`
	Count      int             `json:"count"`
	Query      string          `json:"query"`
	LLMContext string          `json:"llm_context,omitempty"`
	// Fallback is set when results come from the substring scan.
	Fallback bool `json:"fallback,omitempty"`
}
