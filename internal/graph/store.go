package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/savegress/fundlens/pkg/models"
)

// RiskPropagator applies a filed SAR's risk level to an entity already
// known to the store. Implemented by internal/risk; a nil propagator
// disables propagation.
type RiskPropagator interface {
	ApplySAR(entity *models.Entity, sarLevel models.RiskLevel)
}

// Store owns the entity/transaction graph and the SAR collection.
// Transactions form directed edges sender to receiver; parallel edges
// between the same pair are kept, never collapsed. The store only grows
// within a process lifetime.
type Store struct {
	entities     map[string]*models.Entity
	transactions map[string]*models.Transaction
	sars         map[string]*models.SAR
	sarOrder     []*models.SAR
	outgoing     map[string][]*models.Transaction
	incoming     map[string][]*models.Transaction
	propagator   RiskPropagator
	mu           sync.RWMutex
}

// NewStore creates an empty graph store
func NewStore(propagator RiskPropagator) *Store {
	return &Store{
		entities:     make(map[string]*models.Entity),
		transactions: make(map[string]*models.Transaction),
		sars:         make(map[string]*models.SAR),
		outgoing:     make(map[string][]*models.Transaction),
		incoming:     make(map[string][]*models.Transaction),
		propagator:   propagator,
	}
}

// AddEntity upserts an entity by id. A re-add overwrites every field,
// including the risk fields; callers re-supplying an entity must carry
// the current risk state or it resets. The risk level is always derived
// from the score so the two never diverge.
func (s *Store) AddEntity(e *models.Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("entity id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := *e
	stored.Stub = false
	stored.RiskLevel = models.RiskLevelFromScore(stored.RiskScore)
	stored.UpdatedAt = now

	if prev, ok := s.entities[e.ID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}

	s.entities[e.ID] = &stored
	return nil
}

// AddTransaction stores a transaction and inserts a directed edge from
// sender to receiver. Unknown endpoints are created as stub entities
// with unknown name and type.
func (s *Store) AddTransaction(t *models.Transaction) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("transaction already exists: %s", t.ID)
	}

	s.ensureEntity(t.SenderID)
	s.ensureEntity(t.ReceiverID)

	stored := *t
	s.transactions[t.ID] = &stored
	s.outgoing[t.SenderID] = append(s.outgoing[t.SenderID], &stored)
	s.incoming[t.ReceiverID] = append(s.incoming[t.ReceiverID], &stored)
	return nil
}

// FileSAR stores a SAR and propagates its risk level to every involved
// entity already known to the store. Unknown entities are silently
// skipped; filing never creates stubs, unlike transaction ingestion.
func (s *Store) FileSAR(sar *models.SAR) error {
	if sar == nil || sar.ID == "" {
		return fmt.Errorf("sar id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sars[sar.ID]; ok {
		return fmt.Errorf("sar already exists: %s", sar.ID)
	}

	stored := *sar
	s.sars[sar.ID] = &stored
	s.sarOrder = append(s.sarOrder, &stored)

	if s.propagator != nil {
		for _, entityID := range stored.EntitiesInvolved {
			if entity, ok := s.entities[entityID]; ok {
				s.propagator.ApplySAR(entity, stored.RiskLevel)
			}
		}
	}
	return nil
}

func (s *Store) ensureEntity(id string) {
	if id == "" {
		return
	}
	if _, ok := s.entities[id]; ok {
		return
	}
	now := time.Now()
	s.entities[id] = &models.Entity{
		ID:        id,
		Type:      models.EntityTypeUnknown,
		RiskLevel: models.RiskLevelLow,
		Stub:      true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Entity returns a copy of the entity with the given id. A copy is
// returned because SAR filing mutates stored risk fields in place.
func (s *Store) Entity(id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return models.Entity{}, false
	}
	return *e, true
}

// Transaction retrieves a transaction by id
func (s *Store) Transaction(id string) (*models.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	return t, ok
}

// SAR retrieves a SAR by id
func (s *Store) SAR(id string) (*models.SAR, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sar, ok := s.sars[id]
	return sar, ok
}

// SARs returns all filed SARs in filing order
func (s *Store) SARs() []*models.SAR {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SAR, len(s.sarOrder))
	copy(out, s.sarOrder)
	return out
}

// Stats summarizes the store contents
type Stats struct {
	TotalEntities     int `json:"total_entities"`
	TotalTransactions int `json:"total_transactions"`
	TotalSARs         int `json:"total_sars"`
	GraphNodes        int `json:"graph_nodes"`
	GraphEdges        int `json:"graph_edges"`
	HighRiskEntities  int `json:"high_risk_entities"`
	StubEntities      int `json:"stub_entities"`
}

// GetStats returns store statistics. GraphEdges counts distinct ordered
// sender/receiver pairs; TotalTransactions counts every parallel edge.
func (s *Store) GetStats() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalEntities:     len(s.entities),
		TotalTransactions: len(s.transactions),
		TotalSARs:         len(s.sars),
		GraphNodes:        len(s.entities),
	}

	type pair struct{ from, to string }
	pairs := make(map[pair]struct{})
	for _, t := range s.transactions {
		pairs[pair{t.SenderID, t.ReceiverID}] = struct{}{}
	}
	stats.GraphEdges = len(pairs)

	for _, e := range s.entities {
		if e.RiskLevel == models.RiskLevelHigh || e.RiskLevel == models.RiskLevelCritical {
			stats.HighRiskEntities++
		}
		if e.Stub {
			stats.StubEntities++
		}
	}
	return stats
}

// Snapshot returns a consistent read view of the store. Entity values
// are copied so later SAR filings do not show through; transaction and
// SAR pointers are shared because both are immutable once stored.
// Adjacency slice headers are shared too: the store only ever appends,
// and the captured length pins the visible prefix.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		entities:     make(map[string]models.Entity, len(s.entities)),
		transactions: make(map[string]*models.Transaction, len(s.transactions)),
		sars:         make([]*models.SAR, len(s.sarOrder)),
		outgoing:     make(map[string][]*models.Transaction, len(s.outgoing)),
		incoming:     make(map[string][]*models.Transaction, len(s.incoming)),
	}
	for id, e := range s.entities {
		snap.entities[id] = *e
	}
	for id, t := range s.transactions {
		snap.transactions[id] = t
	}
	copy(snap.sars, s.sarOrder)
	for id, list := range s.outgoing {
		snap.outgoing[id] = list
	}
	for id, list := range s.incoming {
		snap.incoming[id] = list
	}
	return snap
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
