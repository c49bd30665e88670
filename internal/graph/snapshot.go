package graph

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/savegress/fundlens/pkg/models"
)

// Snapshot is an immutable read view of the store taken at one instant.
// Detection and analysis run against a snapshot so a long traversal never
// observes a half-applied mutation.
type Snapshot struct {
	entities     map[string]models.Entity
	transactions map[string]*models.Transaction
	sars         []*models.SAR
	outgoing     map[string][]*models.Transaction
	incoming     map[string][]*models.Transaction
}

// Entity returns the entity as of the snapshot instant
func (s *Snapshot) Entity(id string) (models.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// HasEntity reports whether the entity exists in the snapshot
func (s *Snapshot) HasEntity(id string) bool {
	_, ok := s.entities[id]
	return ok
}

// Transaction retrieves a transaction by id
func (s *Snapshot) Transaction(id string) (*models.Transaction, bool) {
	t, ok := s.transactions[id]
	return t, ok
}

// SARs returns all SARs filed before the snapshot, in filing order
func (s *Snapshot) SARs() []*models.SAR {
	return s.sars
}

// EntityIDs returns every entity id in the snapshot, sorted
func (s *Snapshot) EntityIDs() []string {
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Outgoing returns the transactions sent by the entity, insertion order
func (s *Snapshot) Outgoing(id string) []*models.Transaction {
	return s.outgoing[id]
}

// Incoming returns the transactions received by the entity, insertion order
func (s *Snapshot) Incoming(id string) []*models.Transaction {
	return s.incoming[id]
}

// ConnectedEntities finds every entity reachable from id within maxDepth
// hops, treating edges as undirected. The result excludes the start
// entity; an unknown id yields an empty set. Membership is deterministic
// though visitation order is not.
func (s *Snapshot) ConnectedEntities(id string, maxDepth int) map[string]bool {
	connected := make(map[string]bool)
	if !s.HasEntity(id) {
		return connected
	}

	type item struct {
		id    string
		depth int
	}
	visited := map[string]bool{id: true}
	queue := []item{{id, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, t := range s.outgoing[cur.id] {
			if !visited[t.ReceiverID] {
				visited[t.ReceiverID] = true
				connected[t.ReceiverID] = true
				queue = append(queue, item{t.ReceiverID, cur.depth + 1})
			}
		}
		for _, t := range s.incoming[cur.id] {
			if !visited[t.SenderID] {
				visited[t.SenderID] = true
				connected[t.SenderID] = true
				queue = append(queue, item{t.SenderID, cur.depth + 1})
			}
		}
	}
	return connected
}

// EntityTransactions returns every transaction where the entity is sender
// or receiver, ordered by timestamp then id. Self-transfers appear once.
func (s *Snapshot) EntityTransactions(id string) []*models.Transaction {
	var txns []*models.Transaction
	txns = append(txns, s.outgoing[id]...)
	for _, t := range s.incoming[id] {
		if t.SenderID == id {
			continue
		}
		txns = append(txns, t)
	}

	sort.Slice(txns, func(i, j int) bool {
		if txns[i].Timestamp.Equal(txns[j].Timestamp) {
			return txns[i].ID < txns[j].ID
		}
		return txns[i].Timestamp.Before(txns[j].Timestamp)
	})
	return txns
}

// GraphNode is a node in an entity graph view
type GraphNode struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	RiskScore float64 `json:"risk_score"`
}

// GraphEdge is a directed edge in an entity graph view, one per transaction
type GraphEdge struct {
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
}

// GraphData holds the subgraph around an entity for visualization
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphData returns the subgraph within depth hops of the entity: the
// connected node set including the entity itself, and every transaction
// whose endpoints are both inside that set. Stub nodes fall back to the
// id for the name. An unknown id yields empty lists.
func (s *Snapshot) GraphData(id string, depth int) *GraphData {
	data := &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if !s.HasEntity(id) {
		return data
	}

	inView := s.ConnectedEntities(id, depth)
	inView[id] = true

	for _, nodeID := range sortedIDs(inView) {
		e := s.entities[nodeID]
		name := e.Name
		if name == "" {
			name = nodeID
		}
		data.Nodes = append(data.Nodes, GraphNode{
			ID:        nodeID,
			Name:      name,
			Type:      e.Type,
			RiskScore: e.RiskScore,
		})
	}

	for _, nodeID := range sortedIDs(inView) {
		for _, t := range s.outgoing[nodeID] {
			if !inView[t.ReceiverID] {
				continue
			}
			data.Edges = append(data.Edges, GraphEdge{
				Source:        t.SenderID,
				Target:        t.ReceiverID,
				Amount:        t.Amount,
				TransactionID: t.ID,
			})
		}
	}
	return data
}
