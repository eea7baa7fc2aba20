package handlers

import (
	"cmp"
	"slices"
	"strings"
)

// Keyword groups scanned in trend content.
const (
	GroupStyles      = "styles"
	GroupMaterials   = "materials"
	GroupGemstones   = "gemstones"
	GroupCategories  = "categories"
	GroupColors      = "colors"
	GroupDescriptors = "descriptors"
)

var keywordGroups = []struct {
	name     string
	keywords []string
}{
	{GroupStyles, []string{"classic", "modern", "vintage", "minimalist", "luxury", "bohemian", "art deco", "geometric"}},
	{GroupMaterials, []string{"gold", "silver", "platinum", "white gold", "rose gold", "titanium", "stainless steel"}},
	{GroupGemstones, []string{"diamond", "ruby", "sapphire", "emerald", "pearl", "topaz", "amethyst", "opal"}},
	{GroupCategories, []string{"ring", "necklace", "bracelet", "earring", "pendant", "brooch", "anklet"}},
	{GroupColors, []string{"gold", "silver", "rose", "yellow", "white", "black", "blue", "red", "green"}},
	{GroupDescriptors, []string{"elegant", "bold", "delicate", "statement", "layered", "stackable", "chunky", "dainty"}},
}

// ScoredCategories are the catalog categories scored by share of voice.
var ScoredCategories = []string{"Rings", "Necklaces", "Bracelets", "Earrings", "Pendants", "Brooches", "Anklets"}

// KeywordCount is one keyword and its number of mentions.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// ExtractKeywords counts the known keywords in content per group. Groups
// without a mention are omitted; counts are sorted descending.
func ExtractKeywords(content string) map[string][]KeywordCount {
	words := tokenize(content)
	out := map[string][]KeywordCount{}
	for _, g := range keywordGroups {
		var found []KeywordCount
		for _, kw := range g.keywords {
			if n := countPhrase(words, strings.Fields(kw)); n > 0 {
				found = append(found, KeywordCount{Keyword: kw, Count: n})
			}
		}
		if len(found) == 0 {
			continue
		}
		slices.SortStableFunc(found, func(a, b KeywordCount) int { return cmp.Compare(b.Count, a.Count) })
		out[g.name] = found
	}
	return out
}

// TopKeywords returns at most n keywords of group in count order.
func TopKeywords(kw map[string][]KeywordCount, group string, n int) []string {
	list := kw[group]
	out := make([]string, 0, min(n, len(list)))
	for _, k := range list {
		if len(out) == n {
			break
		}
		out = append(out, k.Keyword)
	}
	return out
}

// ShareOfVoice scores each of ScoredCategories by its share of category
// mentions, rounded to two decimals. Every category gets 0.1 when none is
// mentioned.
func ShareOfVoice(kw map[string][]KeywordCount) map[string]float64 {
	counts := make(map[string]int, len(ScoredCategories))
	total := 0
	for _, k := range kw[GroupCategories] {
		for _, c := range ScoredCategories {
			if strings.HasPrefix(strings.ToLower(c), k.Keyword) {
				counts[c] += k.Count
				total += k.Count
				break
			}
		}
	}

	scores := make(map[string]float64, len(ScoredCategories))
	for _, c := range ScoredCategories {
		if total == 0 {
			scores[c] = 0.1
			continue
		}
		scores[c] = round2(float64(counts[c]) / float64(total))
	}
	return scores
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
}

// countPhrase counts the occurrences of phrase in words. The last word of
// the phrase also matches its plural.
func countPhrase(words, phrase []string) int {
	if len(phrase) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(phrase) <= len(words); i++ {
		ok := true
		for j, p := range phrase {
			w := words[i+j]
			if j == len(phrase)-1 {
				ok = w == p || w == p+"s" || w == p+"es"
			} else {
				ok = w == p
			}
			if !ok {
				break
			}
		}
		if ok {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
