package narrative

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/savegress/fundlens/pkg/models"
)

// category pairs a pattern name with the keywords that signal it.
type category struct {
	name     string
	keywords []string
}

// categories define the embedding space. Dimension i of an embedding is
// the keyword-presence fraction for categories[i]; the order is fixed
// and ties resolve toward earlier entries.
var categories = []category{
	{"structuring", []string{"multiple", "transactions", "below", "threshold", "avoid"}},
	{"money_laundering", []string{"layering", "placement", "integration", "wash"}},
	{"fraud", []string{"false", "fake", "deception", "misrepresentation"}},
	{"terrorist_financing", []string{"terrorism", "extremist", "funding"}},
	{"unusual_transaction", []string{"unusual", "abnormal", "irregular", "suspicious"}},
}

// riskIndicators are scanned in order; an indicator is reported when
// any of its keywords appears in the narrative.
var riskIndicators = []category{
	{"high_value", []string{"large amount", "significant sum", "million", "thousands"}},
	{"cross_border", []string{"international", "foreign", "overseas", "cross-border"}},
	{"shell_company", []string{"shell company", "front", "nominee"}},
	{"cash_intensive", []string{"cash", "currency", "physical money"}},
	{"rapid_movement", []string{"rapid", "quick", "immediate", "frequent"}},
	{"anonymous", []string{"anonymous", "unknown", "unidentified"}},
}

// Engine embeds SAR narratives into a keyword-presence vector space and
// compares them by cosine similarity. Embeddings are cached per SAR id.
type Engine struct {
	mu         sync.RWMutex
	embeddings map[string][]float64
}

// NewEngine creates a narrative analysis engine
func NewEngine() *Engine {
	return &Engine{
		embeddings: make(map[string][]float64),
	}
}

// Embed maps text to its embedding: for each category, the fraction of
// that category's keywords contained in the lowercased text. Matching
// is substring containment, so "avoidance" counts for "avoid".
func (e *Engine) Embed(text string) []float64 {
	lower := strings.ToLower(text)
	vec := make([]float64, len(categories))
	for i, cat := range categories {
		found := 0
		for _, keyword := range cat.keywords {
			if strings.Contains(lower, keyword) {
				found++
			}
		}
		vec[i] = float64(found) / float64(len(cat.keywords))
	}
	return vec
}

// EmbedSAR returns the embedding for the SAR's narrative, computing and
// caching it by SAR id on first use. Callers must not mutate the
// returned vector.
func (e *Engine) EmbedSAR(sar *models.SAR) []float64 {
	e.mu.RLock()
	vec, ok := e.embeddings[sar.ID]
	e.mu.RUnlock()
	if ok {
		return vec
	}

	vec = e.Embed(sar.Narrative)
	e.mu.Lock()
	e.embeddings[sar.ID] = vec
	e.mu.Unlock()
	return vec
}

// Similarity is the cosine similarity of two embeddings, 0.0 when
// either vector has zero norm. Symmetric, and within [0, 1] for the
// non-negative vectors Embed produces.
func (e *Engine) Similarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Analysis is the outcome of analyzing one SAR narrative.
type Analysis struct {
	SARID             string   `json:"sar_id"`
	PrimaryPattern    string   `json:"primary_pattern"`
	Confidence        float64  `json:"confidence"`
	SecondaryPatterns []string `json:"secondary_patterns"`
	RiskIndicators    []string `json:"risk_indicators"`
}

// AnalyzeSAR classifies a SAR narrative. The primary pattern is the
// strongest category ("unknown" when nothing matches), its fraction is
// the confidence, and weaker non-zero categories are secondary.
func (e *Engine) AnalyzeSAR(sar *models.SAR) *Analysis {
	vec := e.EmbedSAR(sar)

	maxIdx := 0
	for i, score := range vec {
		if score > vec[maxIdx] {
			maxIdx = i
		}
	}

	primary := "unknown"
	if vec[maxIdx] > 0 {
		primary = categories[maxIdx].name
	}

	secondary := []string{}
	for i, score := range vec {
		if score > 0 && score < vec[maxIdx] {
			secondary = append(secondary, categories[i].name)
		}
	}

	return &Analysis{
		SARID:             sar.ID,
		PrimaryPattern:    primary,
		Confidence:        vec[maxIdx],
		SecondaryPatterns: secondary,
		RiskIndicators:    extractRiskIndicators(sar.Narrative),
	}
}

func extractRiskIndicators(text string) []string {
	lower := strings.ToLower(text)
	indicators := []string{}
	for _, indicator := range riskIndicators {
		for _, keyword := range indicator.keywords {
			if strings.Contains(lower, keyword) {
				indicators = append(indicators, indicator.name)
				break
			}
		}
	}
	return indicators
}

// Match pairs a SAR with its similarity to the query SAR.
type Match struct {
	SAR        *models.SAR
	Similarity float64
}

// FindSimilar scores every other SAR against the query and returns the
// matches at or above the threshold, most similar first. Equal scores
// keep the input order.
func (e *Engine) FindSimilar(sar *models.SAR, all []*models.SAR, threshold float64) []Match {
	query := e.EmbedSAR(sar)

	matches := []Match{}
	for _, other := range all {
		if other.ID == sar.ID {
			continue
		}
		similarity := e.Similarity(query, e.EmbedSAR(other))
		if similarity >= threshold {
			matches = append(matches, Match{SAR: other, Similarity: similarity})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}
