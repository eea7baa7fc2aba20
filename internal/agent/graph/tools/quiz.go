package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// Question is one fixed taste questionnaire entry.
type Question struct {
	ID       string `json:"question_id"`
	Text     string `json:"question_text"`
	Category string `json:"category"`
}

var Questions = []Question{
	{"favorite_metal", "Which metal do you prefer for jewelry? (yellow, white or rose gold; silver; platinum; copper)", "material"},
	{"jewelry_type", "Which kinds of jewelry do you like? (rings, earrings, bracelets, necklaces or chains, pendants, brooches)", "type"},
	{"stone_preference", "Which stones do you love? (diamonds, emeralds, rubies, sapphires, pearls, natural gems, cubic zirconia, no stones)", "stones"},
	{"style_preference", "Which jewelry style do you like? (classic, minimalist, vintage, modern or avant-garde, ethnic, romantic, sporty)", "style"},
	{"occasions", "For which occasions do you choose jewelry? (everyday, evening, weddings, business meetings, celebrations)", "occasions"},
	{"design_features", "Which design elements attract you? (simple geometric shapes, openwork or carved, bold 3D, enamel, inlaid)", "design"},
	{"brand_attitude", "How do you feel about jewelry brands? (famous luxury brands, independent designers, handmade, brand does not matter)", "brand"},
	{"symbolic_meaning", "Is the symbolic meaning of jewelry important to you? (very important, important but not essential, not very important, not at all)", "meaning"},
	{"budget_range", "What budget do you usually spend on a piece? (under 5k, 5-15k, 15-50k, 50-100k, 100k+)", "budget"},
	{"statement_vs_subtle", "Do you prefer bold, statement pieces or delicate, subtle ones? (statement, mixed, delicate)", "presence"},
}

// QuestionCount is the questionnaire length.
func QuestionCount() int { return len(Questions) }

// QuestionAt returns the question at index, if any.
func QuestionAt(index int) (Question, bool) {
	if index < 0 || index >= len(Questions) {
		return Question{}, false
	}
	return Questions[index], true
}

type NextQuestionInput struct {
	CurrentIndex int `json:"current_index"`
}

type NextQuestionOutput struct {
	Status string `json:"status"`
	Question
	Index int `json:"index"`
	Total int `json:"total"`
}

func NewNextQuestionTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetNextQuestion,
			Desc: "Get the taste questionnaire question at the given index.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"current_index": {
					Type:     schema.Integer,
					Desc:     "Zero based index of the question",
					Required: true,
				},
			}),
		},
		func(_ context.Context, in *NextQuestionInput) (*NextQuestionOutput, error) {
			q, ok := QuestionAt(in.CurrentIndex)
			if !ok {
				return &NextQuestionOutput{Status: "complete", Index: in.CurrentIndex, Total: len(Questions)}, nil
			}
			return &NextQuestionOutput{Status: "next_question", Question: q, Index: in.CurrentIndex, Total: len(Questions)}, nil
		},
	)
}

// TasteProfile is the keyword analysis of questionnaire answers.
type TasteProfile struct {
	Metals              []string `json:"metal_preferences"`
	Stones              []string `json:"stone_preferences"`
	StyleCategory       string   `json:"style_category,omitempty"`
	DesignPreferences   []string `json:"design_preferences"`
	Occasions           []string `json:"occasions_fit"`
	JewelryTypes        []string `json:"jewelry_types"`
	OverallStyle        string   `json:"overall_style,omitempty"`
	Traits              []string `json:"personality_traits"`
	RecommendedPieces   []string `json:"recommended_pieces"`
	BrandRecommendation string   `json:"brand_recommendation,omitempty"`
	Summary             string   `json:"summary,omitempty"`
}

type rule struct {
	words []string
	value string
}

func firstMatch(text string, rules []rule) (string, bool) {
	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(text, w) {
				return r.value, true
			}
		}
	}
	return "", false
}

var (
	metalTraits = []rule{
		{[]string{"yellow"}, "classic, traditional"},
		{[]string{"white", "silver", "platinum"}, "modern, fresh"},
		{[]string{"rose"}, "romantic, feminine"},
		{[]string{"copper"}, "original, alternative"},
	}
	stoneTraits = []rule{
		{[]string{"diamond"}, "elegant, luxurious"},
		{[]string{"pearl"}, "refined, aristocratic"},
		{[]string{"emerald", "rub", "sapphire"}, "bold, vivid character"},
		{[]string{"natural", "gem"}, "eco-conscious, natural"},
		{[]string{"no stone", "none", "plain"}, "minimalist, simple"},
	}
	styleCategories = []struct {
		rule
		trait string
	}{
		{rule{[]string{"classic"}, "Classic"}, "conservative, reliable"},
		{rule{[]string{"minimal"}, "Minimalist"}, "laconic, functional"},
		{rule{[]string{"vintage"}, "Vintage"}, "nostalgic, storied"},
		{rule{[]string{"modern", "avant"}, "Modern"}, "progressive, innovative"},
		{rule{[]string{"ethnic"}, "Ethnic"}, "cultured, multifaceted"},
		{rule{[]string{"romantic"}, "Romantic"}, "sensual, tender"},
		{rule{[]string{"sport"}, "Sporty"}, "active, practical"},
	}
	designTraits = []rule{
		{[]string{"openwork", "carved"}, "meticulous, detail oriented"},
		{[]string{"3d", "bold"}, "expressive"},
		{[]string{"enamel"}, "colorful, youthful"},
	}
	brandRecommendations = []rule{
		{[]string{"luxury", "famous", "expensive"}, "Luxury houses"},
		{[]string{"designer", "independent"}, "Independent designers and boutique brands"},
		{[]string{"handmade", "hand"}, "Handmade makers and signature pieces"},
	}
	pieceRules = []struct {
		traits []string
		pieces []string
	}{
		{[]string{"luxurious", "elegant"}, []string{"Classic diamond rings", "Pearl necklaces"}},
		{[]string{"minimalist", "laconic"}, []string{"Geometric pieces", "Minimalist stud earrings"}},
		{[]string{"romantic", "tender"}, []string{"Delicate heart pendants", "Openwork bracelets"}},
		{[]string{"alternative", "original"}, []string{"Signature pieces by independent designers", "Jewelry in unusual materials"}},
		{[]string{"traditional", "classic"}, []string{"Classic bands", "Simple chains"}},
	}
)

// AnalyzeTasteProfile derives a taste profile from answers keyed by
// question id.
func AnalyzeTasteProfile(answers map[string]string) TasteProfile {
	p := TasteProfile{
		Metals: []string{}, Stones: []string{}, DesignPreferences: []string{},
		Occasions: []string{}, JewelryTypes: []string{}, Traits: []string{}, RecommendedPieces: []string{},
	}
	get := func(id string) (string, string, bool) {
		v, ok := answers[id]
		v = strings.TrimSpace(v)
		return v, strings.ToLower(v), ok && v != ""
	}
	addTrait := func(t string) {
		if !slices.Contains(p.Traits, t) {
			p.Traits = append(p.Traits, t)
		}
	}

	if raw, low, ok := get("favorite_metal"); ok {
		p.Metals = append(p.Metals, raw)
		if t, ok := firstMatch(low, metalTraits); ok {
			addTrait(t)
		}
	}
	if raw, low, ok := get("jewelry_type"); ok {
		p.JewelryTypes = append(p.JewelryTypes, raw)
		for _, r := range []rule{
			{[]string{"ring"}, "focus on hands"},
			{[]string{"earring"}, "attention to the face"},
			{[]string{"bracelet"}, "dynamic style"},
			{[]string{"necklace", "chain"}, "focus on the neckline"},
		} {
			if _, ok := firstMatch(low, []rule{r}); ok {
				p.DesignPreferences = append(p.DesignPreferences, r.value)
			}
		}
	}
	if raw, low, ok := get("stone_preference"); ok {
		p.Stones = append(p.Stones, raw)
		if t, ok := firstMatch(low, stoneTraits); ok {
			addTrait(t)
		}
	}
	if _, low, ok := get("style_preference"); ok {
		for _, s := range styleCategories {
			if _, hit := firstMatch(low, []rule{s.rule}); hit {
				p.StyleCategory = s.value
				addTrait(s.trait)
				break
			}
		}
	}
	if raw, low, ok := get("occasions"); ok {
		p.Occasions = append(p.Occasions, raw)
		if strings.Contains(low, "everyday") {
			addTrait("practical")
		}
		if strings.Contains(low, "evening") || strings.Contains(low, "celebration") {
			addTrait("loves luxury")
		}
	}
	if raw, low, ok := get("design_features"); ok {
		p.DesignPreferences = append(p.DesignPreferences, raw)
		if t, ok := firstMatch(low, designTraits); ok {
			addTrait(t)
		}
	}
	if _, low, ok := get("brand_attitude"); ok {
		p.BrandRecommendation = "Any maker with interesting work"
		if b, ok := firstMatch(low, brandRecommendations); ok {
			p.BrandRecommendation = b
		}
	}
	if _, low, ok := get("budget_range"); ok {
		switch {
		case strings.Contains(low, "under 5k"):
			addTrait("thrifty, careful")
		case strings.Contains(low, "50-100k"), strings.Contains(low, "100k"):
			addTrait("affluent, luxurious")
		}
	}
	if _, low, ok := get("statement_vs_subtle"); ok {
		switch {
		case strings.Contains(low, "statement"), strings.Contains(low, "bold"):
			p.OverallStyle = "Statement, attention grabbing"
			addTrait("confident, extroverted")
		case strings.Contains(low, "mixed"), strings.Contains(low, "both"):
			p.OverallStyle = "Hybrid, adaptive"
			addTrait("flexible, adaptive")
		default:
			p.OverallStyle = "Delicate, refined"
			addTrait("modest, subtle taste")
		}
	}

	traits := strings.Join(p.Traits, ", ")
	for _, r := range pieceRules {
		for _, t := range r.traits {
			if strings.Contains(traits, t) {
				for _, piece := range r.pieces {
					if !slices.Contains(p.RecommendedPieces, piece) {
						p.RecommendedPieces = append(p.RecommendedPieces, piece)
					}
				}
				break
			}
		}
	}

	var summary []string
	if len(p.Metals) > 0 {
		summary = append(summary, "Metal: "+p.Metals[0])
	}
	if p.StyleCategory != "" {
		summary = append(summary, "Style: "+p.StyleCategory)
	}
	if p.OverallStyle != "" {
		summary = append(summary, "Presence: "+p.OverallStyle)
	}
	p.Summary = strings.Join(summary, " | ")
	return p
}

type AnalyzeProfileInput struct {
	Answers map[string]string `json:"answers"`
}

func NewAnalyzeProfileTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolAnalyzeProfile,
			Desc: "Analyze all questionnaire answers and build the customer's jewelry taste profile.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"answers": {
					Type:     schema.Object,
					Desc:     "Answers keyed by question id",
					Required: true,
				},
			}),
		},
		func(_ context.Context, in *AnalyzeProfileInput) (*TasteProfile, error) {
			if len(in.Answers) == 0 {
				return nil, fmt.Errorf("answers are required")
			}
			p := AnalyzeTasteProfile(in.Answers)
			return &p, nil
		},
	)
}
