package detect

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/savegress/fundlens/pkg/models"
)

// Sequence flags reported by AnalyzeSequence.
const (
	SequenceUniformAmounts  = "uniform_amounts"
	SequenceRapidSuccession = "rapid_succession"
	SequenceRoundNumbers    = "round_numbers"
)

// SequenceAnalysis summarizes a transaction sequence and the behavioral
// flags it raised.
type SequenceAnalysis struct {
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AverageAmount    decimal.Decimal `json:"avg_amount"`
	StdDeviation     float64         `json:"std_amount"`
	TimeSpanHours    float64         `json:"time_span_hours"`
	PatternDetected  bool            `json:"pattern_detected"`
	Patterns         []string        `json:"patterns"`
}

// AnalyzeSequence computes summary statistics over a set of transactions
// and flags uniform amounts, rapid succession, and a high share of round
// numbers. An empty input yields a zero-valued analysis.
func AnalyzeSequence(txns []*models.Transaction) *SequenceAnalysis {
	analysis := &SequenceAnalysis{
		TotalAmount:   decimal.Zero,
		AverageAmount: decimal.Zero,
		Patterns:      []string{},
	}
	if len(txns) == 0 {
		return analysis
	}

	amounts := make([]float64, len(txns))
	total := decimal.Zero
	roundCount := 0
	thousand := decimal.NewFromInt(1000)
	earliest, latest := txns[0].Timestamp, txns[0].Timestamp

	for i, t := range txns {
		amounts[i] = t.Amount.InexactFloat64()
		total = total.Add(t.Amount)
		if t.Amount.Mod(thousand).IsZero() {
			roundCount++
		}
		if t.Timestamp.Before(earliest) {
			earliest = t.Timestamp
		}
		if t.Timestamp.After(latest) {
			latest = t.Timestamp
		}
	}

	mean := meanOf(amounts)
	analysis.TransactionCount = len(txns)
	analysis.TotalAmount = total
	analysis.AverageAmount = total.Div(decimal.NewFromInt(int64(len(txns))))
	analysis.StdDeviation = stddev(amounts, mean)
	if len(txns) > 1 {
		analysis.TimeSpanHours = latest.Sub(earliest).Hours()
	}

	if analysis.StdDeviation < mean*0.1 {
		analysis.Patterns = append(analysis.Patterns, SequenceUniformAmounts)
	}
	if analysis.TimeSpanHours < 24 && len(txns) > 5 {
		analysis.Patterns = append(analysis.Patterns, SequenceRapidSuccession)
	}
	if float64(roundCount)/float64(len(txns)) > 0.7 {
		analysis.Patterns = append(analysis.Patterns, SequenceRoundNumbers)
	}
	analysis.PatternDetected = len(analysis.Patterns) > 0

	return analysis
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
