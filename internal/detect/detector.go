package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/internal/graph"
	"github.com/savegress/fundlens/pkg/models"
)

// patternNamespace is the fixed UUID namespace for pattern identity.
var patternNamespace = uuid.MustParse("7c9e3a14-42bb-4c26-8f5a-91de0a6b3d71")

// Detector runs pattern detection over graph snapshots. Detection is
// stateless: every method reads one snapshot and an explicit evaluation
// instant, so identical inputs always produce identical results.
type Detector struct {
	config *config.DetectionConfig
}

// NewDetector creates a pattern detector
func NewDetector(cfg *config.DetectionConfig) *Detector {
	if cfg.StructuringWindow == 0 {
		cfg.StructuringWindow = 7 * 24 * time.Hour
	}
	if cfg.ReportingThreshold == 0 {
		cfg.ReportingThreshold = 10000
	}
	if cfg.StructuringBand == 0 {
		cfg.StructuringBand = 0.9
	}
	if cfg.MinStructuringCount == 0 {
		cfg.MinStructuringCount = 3
	}
	if cfg.RapidWindow == 0 {
		cfg.RapidWindow = 24 * time.Hour
	}
	if cfg.MinRapidCount == 0 {
		cfg.MinRapidCount = 5
	}
	if cfg.MinCycleLength == 0 {
		cfg.MinCycleLength = 3
	}
	if cfg.MaxCycleLength == 0 {
		cfg.MaxCycleLength = 10
	}
	if cfg.MaxCycles == 0 {
		cfg.MaxCycles = 1000
	}
	return &Detector{config: cfg}
}

// DetectStructuring looks for multiple transactions just below the
// reporting threshold within the structuring window ending at asOf.
// The qualifying band is [band*threshold, threshold). Returns nil when
// the entity is unknown or fewer than the minimum count qualify.
func (d *Detector) DetectStructuring(snap *graph.Snapshot, entityID string, asOf time.Time) *models.Pattern {
	if !snap.HasEntity(entityID) {
		return nil
	}

	threshold := decimal.NewFromFloat(d.config.ReportingThreshold)
	lower := threshold.Mul(decimal.NewFromFloat(d.config.StructuringBand))

	var hits []*models.Transaction
	for _, t := range snap.EntityTransactions(entityID) {
		if !d.inWindow(t.Timestamp, asOf, d.config.StructuringWindow) {
			continue
		}
		if t.Amount.GreaterThanOrEqual(lower) && t.Amount.LessThan(threshold) {
			hits = append(hits, t)
		}
	}

	if len(hits) < d.config.MinStructuringCount {
		return nil
	}

	total := decimal.Zero
	txnIDs := make([]string, len(hits))
	for i, t := range hits {
		total = total.Add(t.Amount)
		txnIDs[i] = t.ID
	}

	confidence := min(1.0, float64(len(hits))/10.0)
	level := models.RiskLevelMedium
	if confidence > 0.7 {
		level = models.RiskLevelHigh
	}

	days := int(d.config.StructuringWindow.Hours() / 24)
	return &models.Pattern{
		ID:             patternID(models.PatternStructuring, []string{entityID}, txnIDs),
		Type:           models.PatternStructuring,
		EntityIDs:      []string{entityID},
		TransactionIDs: txnIDs,
		Confidence:     confidence,
		RiskLevel:      level,
		Description: fmt.Sprintf("Detected %d transactions totaling %s in %d days, potentially structured to avoid reporting thresholds",
			len(hits), total.StringFixed(2), days),
		DetectedAt: asOf,
	}
}

// DetectRapidMovement looks for a burst of transactions touching the
// entity within the rapid window ending at asOf. Returns nil when the
// entity is unknown or the burst is below the minimum count.
func (d *Detector) DetectRapidMovement(snap *graph.Snapshot, entityID string, asOf time.Time) *models.Pattern {
	if !snap.HasEntity(entityID) {
		return nil
	}

	var hits []*models.Transaction
	for _, t := range snap.EntityTransactions(entityID) {
		if d.inWindow(t.Timestamp, asOf, d.config.RapidWindow) {
			hits = append(hits, t)
		}
	}

	if len(hits) < d.config.MinRapidCount {
		return nil
	}

	total := decimal.Zero
	txnIDs := make([]string, len(hits))
	for i, t := range hits {
		total = total.Add(t.Amount)
		txnIDs[i] = t.ID
	}

	confidence := min(1.0, float64(len(hits))/15.0)
	level := models.RiskLevelMedium
	if confidence > 0.6 {
		level = models.RiskLevelHigh
	}

	return &models.Pattern{
		ID:             patternID(models.PatternRapidMovement, []string{entityID}, txnIDs),
		Type:           models.PatternRapidMovement,
		EntityIDs:      []string{entityID},
		TransactionIDs: txnIDs,
		Confidence:     confidence,
		RiskLevel:      level,
		Description: fmt.Sprintf("Detected %d transactions totaling %s in %.0f hours",
			len(hits), total.StringFixed(2), d.config.RapidWindow.Hours()),
		DetectedAt: asOf,
	}
}

// EntityPatterns runs every detector for one entity: structuring, rapid
// movement, and the circular patterns the entity is a member of. An
// empty slice is a valid result, not an error.
func (d *Detector) EntityPatterns(snap *graph.Snapshot, entityID string, asOf time.Time) []*models.Pattern {
	patterns := []*models.Pattern{}

	if p := d.DetectStructuring(snap, entityID, asOf); p != nil {
		patterns = append(patterns, p)
	}
	if p := d.DetectRapidMovement(snap, entityID, asOf); p != nil {
		patterns = append(patterns, p)
	}
	for _, p := range d.DetectCircular(snap, asOf) {
		if containsID(p.EntityIDs, entityID) {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func (d *Detector) inWindow(ts, asOf time.Time, window time.Duration) bool {
	if ts.After(asOf) {
		return false
	}
	return asOf.Sub(ts) <= window
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// patternID derives a stable, collision-resistant identity from the
// pattern type and its participants. Entity order is significant (cycles
// are canonicalized by the enumerator); transaction ids are not.
func patternID(ptype models.PatternType, entityIDs, txnIDs []string) string {
	txns := append([]string(nil), txnIDs...)
	sort.Strings(txns)
	name := string(ptype) + "|" + strings.Join(entityIDs, ",") + "|" + strings.Join(txns, ",")
	return uuid.NewSHA1(patternNamespace, []byte(name)).String()
}
