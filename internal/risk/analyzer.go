package risk

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/savegress/fundlens/internal/detect"
	"github.com/savegress/fundlens/internal/graph"
	"github.com/savegress/fundlens/pkg/models"
)

// Analyzer computes entity risk from graph context. All methods read a
// snapshot and never write back to the store.
type Analyzer struct{}

// NewAnalyzer creates a risk analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// EntityRiskScore computes the comprehensive score for an entity: the
// stored score plus up to 0.3 for high-risk connections within two hops
// and up to 0.3 for related SARs, clamped to 1.0. Unknown entities
// score 0.0.
func (a *Analyzer) EntityRiskScore(snap *graph.Snapshot, entityID string) float64 {
	entity, ok := snap.Entity(entityID)
	if !ok {
		return 0.0
	}

	score := entity.RiskScore

	highRisk := 0
	for id := range snap.ConnectedEntities(entityID, 2) {
		if connected, ok := snap.Entity(id); ok && connected.RiskScore > 0.5 {
			highRisk++
		}
	}
	score += min(0.3, float64(highRisk)*0.05)
	score += min(0.3, float64(len(a.RelatedSARs(snap, entityID)))*0.1)

	return min(1.0, score)
}

// RelatedSARs returns every SAR naming the entity or any entity within
// two hops of it, in filing order.
func (a *Analyzer) RelatedSARs(snap *graph.Snapshot, entityID string) []*models.SAR {
	connected := snap.ConnectedEntities(entityID, 2)
	connected[entityID] = true

	var related []*models.SAR
	for _, sar := range snap.SARs() {
		for _, id := range sar.EntitiesInvolved {
			if connected[id] {
				related = append(related, sar)
				break
			}
		}
	}
	return related
}

// Factors are the inputs to the aggregate risk score.
type Factors struct {
	SARCount        int
	ConnectionCount int
	TotalVolume     decimal.Decimal
	PatternCount    int
}

// Aggregate combines weighted factors into a score in [0, 1]: SARs
// contribute up to 0.3, connections up to 0.2, transaction volume up to
// 0.3 in tiers, and patterns up to 0.2.
func (a *Analyzer) Aggregate(f Factors) (float64, models.RiskLevel) {
	score := 0.0
	score += min(0.3, float64(f.SARCount)*0.1)
	score += min(0.2, float64(f.ConnectionCount)*0.02)

	switch {
	case f.TotalVolume.GreaterThan(decimal.NewFromInt(1000000)):
		score += 0.3
	case f.TotalVolume.GreaterThan(decimal.NewFromInt(100000)):
		score += 0.2
	case f.TotalVolume.GreaterThan(decimal.NewFromInt(10000)):
		score += 0.1
	}

	score += min(0.2, float64(f.PatternCount)*0.05)
	score = min(1.0, score)
	return score, models.RiskLevelFromScore(score)
}

// SARSummary is the compact form of a related SAR inside a report.
type SARSummary struct {
	SARID        string              `json:"sar_id"`
	ActivityType models.ActivityType `json:"activity_type"`
	RiskLevel    models.RiskLevel    `json:"risk_level"`
}

// Report is a full risk assessment for one entity.
type Report struct {
	ID                string                   `json:"report_id"`
	EntityID          string                   `json:"entity_id"`
	GeneratedAt       time.Time                `json:"generated_at"`
	RiskScore         float64                  `json:"risk_score"`
	RiskLevel         models.RiskLevel         `json:"risk_level"`
	ComprehensiveRisk float64                  `json:"comprehensive_risk"`
	ConnectionCount   int                      `json:"connection_count"`
	TransactionCount  int                      `json:"transaction_count"`
	TotalVolume       decimal.Decimal          `json:"total_volume"`
	RelatedSARs       []SARSummary             `json:"related_sars"`
	Patterns          []string                 `json:"detected_patterns"`
	Sequence          *detect.SequenceAnalysis `json:"sequence_analysis"`
	Findings          []string                 `json:"findings"`
	Recommendations   []string                 `json:"recommendations"`
}

// BuildReport assembles the risk report for an entity as of the given
// instant. The caller supplies the patterns already detected for the
// entity so they feed both the aggregate score and the recommendations.
func (a *Analyzer) BuildReport(snap *graph.Snapshot, entityID string, asOf time.Time, detected []*models.Pattern) *Report {
	related := a.RelatedSARs(snap, entityID)
	connections := snap.ConnectedEntities(entityID, 2)
	txns := snap.EntityTransactions(entityID)
	sequence := detect.AnalyzeSequence(txns)

	volume := decimal.Zero
	for _, t := range txns {
		volume = volume.Add(t.Amount)
	}

	patterns := make([]string, 0, len(sequence.Patterns)+len(detected))
	patterns = append(patterns, sequence.Patterns...)
	for _, p := range detected {
		patterns = append(patterns, string(p.Type))
	}

	score, level := a.Aggregate(Factors{
		SARCount:        len(related),
		ConnectionCount: len(connections),
		TotalVolume:     volume,
		PatternCount:    len(patterns),
	})

	summaries := make([]SARSummary, len(related))
	for i, sar := range related {
		summaries[i] = SARSummary{
			SARID:        sar.ID,
			ActivityType: sar.ActivityType,
			RiskLevel:    sar.RiskLevel,
		}
	}

	findings := []string{
		fmt.Sprintf("Connected to %d entities", len(connections)),
		fmt.Sprintf("Involved in %d SARs", len(related)),
		fmt.Sprintf("Total transaction volume: $%s", volume.StringFixed(2)),
	}

	return &Report{
		ID:                uuid.New().String(),
		EntityID:          entityID,
		GeneratedAt:       asOf,
		RiskScore:         score,
		RiskLevel:         level,
		ComprehensiveRisk: a.EntityRiskScore(snap, entityID),
		ConnectionCount:   len(connections),
		TransactionCount:  len(txns),
		TotalVolume:       volume,
		RelatedSARs:       summaries,
		Patterns:          patterns,
		Sequence:          sequence,
		Findings:          findings,
		Recommendations:   recommendations(score, patterns),
	}
}

// recommendations maps the score bucket and pattern membership to the
// fixed analyst guidance list.
func recommendations(score float64, patterns []string) []string {
	recs := []string{}

	switch {
	case score >= 0.8:
		recs = append(recs,
			"CRITICAL: Immediate investigation required. Consider filing SAR if not already done.",
			"Enhanced due diligence recommended",
			"Review all recent transactions",
		)
	case score >= 0.6:
		recs = append(recs,
			"Enhanced monitoring recommended",
			"Review transaction patterns",
		)
	case score >= 0.3:
		recs = append(recs,
			"Continue standard monitoring",
			"Document findings for future reference",
		)
	}

	if hasPattern(patterns, string(models.PatternStructuring)) {
		recs = append(recs, "Investigate for potential structuring activity")
	}
	if hasPattern(patterns, string(models.PatternCircularTransactions)) {
		recs = append(recs, "Analyze circular transaction pattern for money laundering indicators")
	}
	if hasPattern(patterns, string(models.PatternRapidMovement)) {
		recs = append(recs, "Review rapid fund movement for layering activity")
	}
	return recs
}

func hasPattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
	}
	return false
}
