package retrieval

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

const noProducts = "No matching products found in catalog."

// FormatContext renders items and the preference summary as a block for the
// language model.
func FormatContext(items []model.CandidateItem, prefs *model.Preferences, currency string) string {
	if len(items) == 0 {
		return noProducts
	}

	var b strings.Builder
	if prefs != nil {
		b.WriteString("User Preferences:\n")
		b.WriteString(FormatPreferences(prefs, currency))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Found %d relevant products:\n", len(items))
	for i, it := range items {
		b.WriteString("\n")
		b.WriteString(formatItem(i+1, it, currency))
	}
	return b.String()
}

// FormatPreferences renders the set preference fields, one per line.
func FormatPreferences(prefs *model.Preferences, currency string) string {
	var lines []string
	if prefs.Style != "" {
		lines = append(lines, "- Style: "+prefs.Style)
	}
	if prefs.BudgetMin != nil || prefs.BudgetMax != nil {
		low, high := "0", "unlimited"
		if prefs.BudgetMin != nil {
			low = number(*prefs.BudgetMin)
		}
		if prefs.BudgetMax != nil {
			high = number(*prefs.BudgetMax)
		}
		lines = append(lines, fmt.Sprintf("- Budget: %s%s - %s%s", low, currency, high, currency))
	}
	if len(prefs.Materials) > 0 {
		lines = append(lines, "- Preferred materials: "+strings.Join(prefs.Materials, ", "))
	}
	if prefs.SkinTone != "" {
		lines = append(lines, "- Skin tone: "+prefs.SkinTone)
	}
	if len(prefs.Occasions) > 0 {
		lines = append(lines, "- Occasions: "+strings.Join(prefs.Occasions, ", "))
	}
	if len(lines) == 0 {
		return "No specific preferences"
	}
	return strings.Join(lines, "\n")
}

func formatItem(idx int, it model.CandidateItem, currency string) string {
	p := it.Product
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	lines := []string{fmt.Sprintf("%d. %s", idx, name)}
	if p.Description != "" {
		lines = append(lines, "   Description: "+p.Description)
	}

	var details []string
	if p.Category != "" {
		details = append(details, "Category: "+p.Category)
	}
	if p.Material != "" {
		details = append(details, "Material: "+p.Material)
	}
	if p.Price > 0 {
		details = append(details, "Price: "+number(p.Price)+currency)
	}
	if p.Weight > 0 {
		details = append(details, "Weight: "+number(p.Weight)+"g")
	}
	if len(details) > 0 {
		lines = append(lines, "   "+strings.Join(details, ", "))
	}

	if len(p.DesignDetails) > 0 {
		keys := make([]string, 0, len(p.DesignDetails))
		for k := range p.DesignDetails {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, p.DesignDetails[k]))
		}
		lines = append(lines, "   Design: "+strings.Join(parts, ", "))
	}

	availability := "Out of stock"
	if p.InStock() {
		availability = "In stock"
	}
	lines = append(lines, fmt.Sprintf("   Availability: %s (%d units)", availability, p.StockCount))

	if it.Score > 0 {
		lines = append(lines, fmt.Sprintf("   Relevance: %.2f", it.Score))
	}
	return strings.Join(lines, "\n")
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
