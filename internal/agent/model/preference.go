package model

import (
	"slices"
	"strings"
	"time"
)

// Preferences is the structured filter/boost input of the retrieval
// pipeline.
type Preferences struct {
	Style     string   `json:"style_preference,omitempty"`
	Materials []string `json:"preferred_materials,omitempty"`
	BudgetMin *float64 `json:"budget_min,omitempty"`
	BudgetMax *float64 `json:"budget_max,omitempty"`
	SkinTone  string   `json:"skin_tone,omitempty"`
	Occasions []string `json:"occasion_types,omitempty"`
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	p.Materials = slices.Clone(p.Materials)
	p.Occasions = slices.Clone(p.Occasions)
	if p.BudgetMin != nil {
		v := *p.BudgetMin
		p.BudgetMin = &v
	}
	if p.BudgetMax != nil {
		v := *p.BudgetMax
		p.BudgetMax = &v
	}
	return p
}

// IsEmpty reports whether no field is set.
func (p *Preferences) IsEmpty() bool {
	return p == nil || (p.Style == "" && len(p.Materials) == 0 && p.BudgetMin == nil &&
		p.BudgetMax == nil && p.SkinTone == "" && len(p.Occasions) == 0)
}

// Merge overlays update on p: scalar fields are overridden when set, list
// fields are unioned keeping first-seen order.
func (p Preferences) Merge(update *Preferences) Preferences {
	out := p.Clone()
	if update == nil {
		return out
	}
	if update.Style != "" {
		out.Style = update.Style
	}
	if update.SkinTone != "" {
		out.SkinTone = update.SkinTone
	}
	if update.BudgetMin != nil {
		v := *update.BudgetMin
		out.BudgetMin = &v
	}
	if update.BudgetMax != nil {
		v := *update.BudgetMax
		out.BudgetMax = &v
	}
	out.Materials = union(out.Materials, update.Materials)
	out.Occasions = union(out.Occasions, update.Occasions)
	return out
}

// HasMaterial reports whether material is among the preferred materials,
// ignoring case.
func (p *Preferences) HasMaterial(material string) bool {
	if p == nil || material == "" {
		return false
	}
	for _, m := range p.Materials {
		if strings.EqualFold(strings.TrimSpace(m), strings.TrimSpace(material)) {
			return true
		}
	}
	return false
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, v := range b {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !slices.ContainsFunc(out, func(x string) bool { return strings.EqualFold(x, v) }) {
			out = append(out, v)
		}
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Profile is the stored preference profile of a user.
type Profile struct {
	UserID              string      `json:"user_id"`
	Preferences         Preferences `json:"preferences"`
	ConsultationHistory []string    `json:"consultation_history,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// InteractionRecord is one logged handler interaction.
type InteractionRecord struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	AgentType         HandlerID      `json:"agent_type"`
	Message           string         `json:"message"`
	Response          string         `json:"response"`
	Recommendations   []string       `json:"recommendations,omitempty"`
	PreferenceUpdates map[string]any `json:"preference_updates,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}
