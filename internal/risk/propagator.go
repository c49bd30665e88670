package risk

import (
	"github.com/savegress/fundlens/pkg/models"
)

// Propagator raises entity risk when a SAR names the entity. Each SAR
// level carries a fixed increase; scores saturate at 1.0 and the level
// is re-derived from the new score.
type Propagator struct{}

// NewPropagator creates a risk propagator
func NewPropagator() *Propagator {
	return &Propagator{}
}

// ApplySAR mutates the entity's risk score and level in place. The
// caller is expected to hold whatever lock guards the entity.
func (p *Propagator) ApplySAR(entity *models.Entity, sarLevel models.RiskLevel) {
	entity.RiskScore = min(1.0, entity.RiskScore+propagationStep(sarLevel))
	entity.RiskLevel = models.RiskLevelFromScore(entity.RiskScore)
}

// propagationStep maps a SAR risk level to its score increase.
// Unrecognized levels fall back to the low step.
func propagationStep(level models.RiskLevel) float64 {
	switch level {
	case models.RiskLevelCritical:
		return 0.80
	case models.RiskLevelHigh:
		return 0.50
	case models.RiskLevelMedium:
		return 0.25
	default:
		return 0.10
	}
}
