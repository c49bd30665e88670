package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel represents the severity bucket derived from a risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskLevelFromScore buckets a score in [0,1] into a risk level.
// Boundaries are inclusive lower bounds: 0.8 is critical, 0.6 is high,
// 0.3 is medium.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskLevelCritical
	case score >= 0.6:
		return RiskLevelHigh
	case score >= 0.3:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ParseRiskLevel parses a case-insensitive risk level name
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(s)) {
	case RiskLevelLow:
		return RiskLevelLow, nil
	case RiskLevelMedium:
		return RiskLevelMedium, nil
	case RiskLevelHigh:
		return RiskLevelHigh, nil
	case RiskLevelCritical:
		return RiskLevelCritical, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// ActivityType represents the category of suspicious activity on a SAR
type ActivityType string

const (
	ActivityStructuring          ActivityType = "structuring"
	ActivityMoneyLaundering      ActivityType = "money_laundering"
	ActivityFraud                ActivityType = "fraud"
	ActivityTerroristFinancing   ActivityType = "terrorist_financing"
	ActivityUnusualTransaction   ActivityType = "unusual_transaction"
	ActivityMultipleAccounts     ActivityType = "multiple_accounts"
	ActivityHighRiskJurisdiction ActivityType = "high_risk_jurisdiction"
)

// ParseActivityType parses a case-insensitive activity type name
func ParseActivityType(s string) (ActivityType, error) {
	switch ActivityType(strings.ToLower(s)) {
	case ActivityStructuring:
		return ActivityStructuring, nil
	case ActivityMoneyLaundering:
		return ActivityMoneyLaundering, nil
	case ActivityFraud:
		return ActivityFraud, nil
	case ActivityTerroristFinancing:
		return ActivityTerroristFinancing, nil
	case ActivityUnusualTransaction:
		return ActivityUnusualTransaction, nil
	case ActivityMultipleAccounts:
		return ActivityMultipleAccounts, nil
	case ActivityHighRiskJurisdiction:
		return ActivityHighRiskJurisdiction, nil
	default:
		return "", fmt.Errorf("unknown activity type %q", s)
	}
}

// Well-known entity types. The entity type is an open string; these are
// the values the system itself assigns.
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
	EntityTypeUnknown      = "unknown"
)

// Entity represents a person or organization in the relationship graph
type Entity struct {
	ID          string            `json:"entity_id"`
	Name        string            `json:"name"`
	Type        string            `json:"entity_type"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	RiskScore   float64           `json:"risk_score"`
	RiskLevel   RiskLevel         `json:"risk_level"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Stub        bool              `json:"stub,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Transaction represents a fund movement between two entities.
// It forms one directed edge sender to receiver; transactions between the
// same pair are kept as parallel edges, never collapsed.
type Transaction struct {
	ID          string            `json:"transaction_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	SenderID    string            `json:"sender_id"`
	ReceiverID  string            `json:"receiver_id"`
	Type        string            `json:"transaction_type"`
	Description string            `json:"description,omitempty"`
	Location    string            `json:"location,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// SAR represents a filed suspicious activity report
type SAR struct {
	ID                   string            `json:"sar_id"`
	FilingDate           time.Time         `json:"filing_date"`
	ActivityType         ActivityType      `json:"activity_type"`
	EntitiesInvolved     []string          `json:"entities_involved"`
	TransactionsInvolved []string          `json:"transactions_involved"`
	Narrative            string            `json:"narrative"`
	RiskLevel            RiskLevel         `json:"risk_level"`
	AmountInvolved       decimal.Decimal   `json:"amount_involved"`
	PeriodStart          time.Time         `json:"time_period_start"`
	PeriodEnd            time.Time         `json:"time_period_end"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// PatternType represents the kind of detected suspicious pattern
type PatternType string

const (
	PatternStructuring          PatternType = "structuring"
	PatternCircularTransactions PatternType = "circular_transactions"
	PatternRapidMovement        PatternType = "rapid_movement"
)

// Pattern represents an ephemeral detection result. Patterns are recomputed
// on every query and never stored by the graph; the ID is deterministic over
// the pattern type and its participants so repeat detections of the same
// finding carry the same identity.
type Pattern struct {
	ID             string      `json:"pattern_id"`
	Type           PatternType `json:"pattern_type"`
	EntityIDs      []string    `json:"entities_involved"`
	TransactionIDs []string    `json:"transactions_involved"`
	SARIDs         []string    `json:"sars_involved,omitempty"`
	Confidence     float64     `json:"confidence_score"`
	RiskLevel      RiskLevel   `json:"risk_level"`
	Description    string      `json:"description"`
	DetectedAt     time.Time   `json:"detected_at"`
}

// Relationship represents a declared link between two entities. It is
// carried as a data shape for callers; detection logic derives connectivity
// from transactions instead.
type Relationship struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Type     string   `json:"relationship_type"`
	Strength float64  `json:"strength"`
	Evidence []string `json:"evidence,omitempty"`
}

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert represents a raised finding awaiting analyst review. Alerts keep
// the deterministic id of the pattern that raised them, so re-detection
// refreshes the open alert instead of duplicating it.
type Alert struct {
	ID          string      `json:"alert_id"`
	PatternID   string      `json:"pattern_id"`
	PatternType PatternType `json:"pattern_type"`
	EntityIDs   []string    `json:"entities_involved"`
	Severity    RiskLevel   `json:"severity"`
	Status      AlertStatus `json:"status"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	Confidence  float64     `json:"confidence"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	AckedBy     string      `json:"acked_by,omitempty"`
	AckedAt     *time.Time  `json:"acked_at,omitempty"`
	ResolvedBy  string      `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
	Note        string      `json:"note,omitempty"`
}

// AuditEvent records a single action taken through the API
type AuditEvent struct {
	ID         string    `json:"event_id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Recorded   time.Time `json:"recorded_at"`
}
