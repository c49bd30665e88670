package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/savegress/fundlens/internal/graph"
	"github.com/savegress/fundlens/pkg/models"
)

// DetectCircular enumerates simple directed cycles in the snapshot and
// emits one pattern per cycle of at least MinCycleLength entities.
// Enumeration is bounded by MaxCycleLength and MaxCycles; when the
// budget is exhausted the patterns found so far are returned.
func (d *Detector) DetectCircular(snap *graph.Snapshot, asOf time.Time) []*models.Pattern {
	patterns := []*models.Pattern{}

	for _, cycle := range d.enumerateCycles(snap) {
		if len(cycle) < d.config.MinCycleLength {
			continue
		}
		txnIDs := cycleTransactions(snap, cycle)
		if len(txnIDs) == 0 {
			continue
		}

		confidence := min(1.0, float64(len(cycle))/10.0)
		level := models.RiskLevelHigh
		if confidence > 0.8 {
			level = models.RiskLevelCritical
		}

		patterns = append(patterns, &models.Pattern{
			ID:             patternID(models.PatternCircularTransactions, cycle, txnIDs),
			Type:           models.PatternCircularTransactions,
			EntityIDs:      cycle,
			TransactionIDs: txnIDs,
			Confidence:     confidence,
			RiskLevel:      level,
			Description:    fmt.Sprintf("Detected circular transaction pattern involving %d entities", len(cycle)),
			DetectedAt:     asOf,
		})
	}
	return patterns
}

// enumerateCycles finds simple directed cycles in canonical form: each
// cycle is reported exactly once, rotated to start at its
// lexicographically smallest member. A depth-first search is run from
// each node in id order, restricted to nodes that sort at or after the
// start node, so any cycle through a smaller node was already found in
// an earlier search. The walk never extends a path past MaxCycleLength
// and stops altogether once MaxCycles cycles have been recorded.
func (d *Detector) enumerateCycles(snap *graph.Snapshot) [][]string {
	var cycles [][]string
	succ := successors(snap)
	exhausted := false

	for _, start := range snap.EntityIDs() {
		if exhausted {
			break
		}

		path := []string{}
		onPath := map[string]bool{}

		var walk func(node string)
		walk = func(node string) {
			path = append(path, node)
			onPath[node] = true

			for _, next := range succ[node] {
				if exhausted {
					break
				}
				if next == start {
					cycles = append(cycles, append([]string(nil), path...))
					if len(cycles) >= d.config.MaxCycles {
						exhausted = true
					}
					continue
				}
				if next < start || onPath[next] {
					continue
				}
				if len(path) >= d.config.MaxCycleLength {
					continue
				}
				walk(next)
			}

			path = path[:len(path)-1]
			delete(onPath, node)
		}
		walk(start)
	}
	return cycles
}

// successors builds the deduplicated adjacency of the snapshot: for each
// entity, the sorted set of distinct receivers it sends to. Parallel
// transactions collapse to a single edge for cycle finding.
func successors(snap *graph.Snapshot) map[string][]string {
	succ := make(map[string][]string)
	for _, id := range snap.EntityIDs() {
		seen := map[string]bool{}
		var out []string
		for _, t := range snap.Outgoing(id) {
			if !seen[t.ReceiverID] {
				seen[t.ReceiverID] = true
				out = append(out, t.ReceiverID)
			}
		}
		sort.Strings(out)
		succ[id] = out
	}
	return succ
}

// cycleTransactions picks one representative transaction per hop of the
// cycle. Parallel edges between the same pair resolve to the smallest
// transaction id, keeping the pattern identity stable.
func cycleTransactions(snap *graph.Snapshot, cycle []string) []string {
	txnIDs := make([]string, 0, len(cycle))
	for i, src := range cycle {
		dst := cycle[(i+1)%len(cycle)]
		best := ""
		for _, t := range snap.Outgoing(src) {
			if t.ReceiverID != dst {
				continue
			}
			if best == "" || t.ID < best {
				best = t.ID
			}
		}
		if best != "" {
			txnIDs = append(txnIDs, best)
		}
	}
	return txnIDs
}
