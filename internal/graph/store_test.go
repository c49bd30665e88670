package graph

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/savegress/fundlens/pkg/models"
)

// stubPropagator applies a fixed +0.5 step so propagation paths can be
// observed without pulling in the real risk package.
type stubPropagator struct {
	applied []string
}

func (p *stubPropagator) ApplySAR(e *models.Entity, level models.RiskLevel) {
	p.applied = append(p.applied, e.ID)
	e.RiskScore += 0.5
	if e.RiskScore > 1.0 {
		e.RiskScore = 1.0
	}
	e.RiskLevel = models.RiskLevelFromScore(e.RiskScore)
}

func testTxn(id, sender, receiver string, amount float64, ts time.Time) *models.Transaction {
	return &models.Transaction{
		ID:         id,
		Timestamp:  ts,
		Amount:     decimal.NewFromFloat(amount),
		Currency:   "USD",
		SenderID:   sender,
		ReceiverID: receiver,
		Type:       "wire",
	}
}

func TestNewStore(t *testing.T) {
	store := NewStore(nil)

	if store == nil {
		t.Fatal("NewStore returned nil")
	}
	if store.entities == nil {
		t.Error("entities map not initialized")
	}
	if store.transactions == nil {
		t.Error("transactions map not initialized")
	}
	if store.sars == nil {
		t.Error("sars map not initialized")
	}
}

func TestStore_AddEntity(t *testing.T) {
	store := NewStore(nil)

	err := store.AddEntity(&models.Entity{
		ID:        "ent-1",
		Name:      "Acme Holdings",
		Type:      models.EntityTypeOrganization,
		RiskScore: 0.65,
	})
	if err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}

	e, ok := store.Entity("ent-1")
	if !ok {
		t.Fatal("entity not found after add")
	}
	if e.Name != "Acme Holdings" {
		t.Errorf("expected name 'Acme Holdings', got '%s'", e.Name)
	}
	if e.RiskLevel != models.RiskLevelHigh {
		t.Errorf("expected risk level derived as high, got %s", e.RiskLevel)
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if e.Stub {
		t.Error("explicitly added entity should not be a stub")
	}
}

func TestStore_AddEntity_MissingID(t *testing.T) {
	store := NewStore(nil)

	if err := store.AddEntity(&models.Entity{Name: "No ID"}); err == nil {
		t.Error("expected error for entity without id")
	}
}

func TestStore_AddEntity_ReAddResetsRisk(t *testing.T) {
	store := NewStore(nil)

	store.AddEntity(&models.Entity{ID: "ent-1", Name: "First", Type: "person", RiskScore: 0.7})

	// A re-add that does not carry the risk state resets it. This is a
	// caller responsibility, not an engine guarantee.
	store.AddEntity(&models.Entity{ID: "ent-1", Name: "First", Type: "person"})

	e, _ := store.Entity("ent-1")
	if e.RiskScore != 0 {
		t.Errorf("expected risk score reset to 0, got %f", e.RiskScore)
	}
	if e.RiskLevel != models.RiskLevelLow {
		t.Errorf("expected risk level low after reset, got %s", e.RiskLevel)
	}
}

func TestStore_AddEntity_UpsertKeepsCreatedAt(t *testing.T) {
	store := NewStore(nil)

	store.AddEntity(&models.Entity{ID: "ent-1", Name: "First", Type: "person"})
	first, _ := store.Entity("ent-1")

	store.AddEntity(&models.Entity{ID: "ent-1", Name: "Renamed", Type: "person"})
	second, _ := store.Entity("ent-1")

	if second.Name != "Renamed" {
		t.Errorf("expected name overwritten, got '%s'", second.Name)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("expected CreatedAt preserved across upsert")
	}
}

func TestStore_AddTransaction_CreatesStubs(t *testing.T) {
	store := NewStore(nil)

	err := store.AddTransaction(testTxn("txn-1", "sender-1", "receiver-1", 500, time.Now()))
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	sender, ok := store.Entity("sender-1")
	if !ok {
		t.Fatal("sender stub not created")
	}
	if !sender.Stub {
		t.Error("sender should be a stub")
	}
	if sender.Type != models.EntityTypeUnknown {
		t.Errorf("expected stub type 'unknown', got '%s'", sender.Type)
	}
	if sender.RiskScore != 0 {
		t.Errorf("expected stub risk score 0, got %f", sender.RiskScore)
	}

	if _, ok := store.Entity("receiver-1"); !ok {
		t.Error("receiver stub not created")
	}
}

func TestStore_AddTransaction_KeepsDeclaredEntities(t *testing.T) {
	store := NewStore(nil)

	store.AddEntity(&models.Entity{ID: "ent-1", Name: "Declared", Type: "person", RiskScore: 0.4})
	store.AddTransaction(testTxn("txn-1", "ent-1", "ent-2", 100, time.Now()))

	e, _ := store.Entity("ent-1")
	if e.Stub {
		t.Error("declared entity must not be downgraded to a stub")
	}
	if e.Name != "Declared" {
		t.Errorf("expected declared name kept, got '%s'", e.Name)
	}
	if e.RiskScore != 0.4 {
		t.Errorf("expected declared risk kept, got %f", e.RiskScore)
	}
}

func TestStore_AddTransaction_Duplicate(t *testing.T) {
	store := NewStore(nil)

	txn := testTxn("txn-1", "a", "b", 100, time.Now())
	if err := store.AddTransaction(txn); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := store.AddTransaction(txn); err == nil {
		t.Error("expected error for duplicate transaction id")
	}
}

func TestStore_AddTransaction_NegativeAmount(t *testing.T) {
	store := NewStore(nil)

	txn := testTxn("txn-1", "a", "b", -50, time.Now())
	if err := store.AddTransaction(txn); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestStore_FileSAR_PropagatesToKnownEntities(t *testing.T) {
	prop := &stubPropagator{}
	store := NewStore(prop)

	store.AddEntity(&models.Entity{ID: "ent-1", Name: "Known", Type: "person"})

	err := store.FileSAR(&models.SAR{
		ID:               "sar-1",
		FilingDate:       time.Now(),
		ActivityType:     models.ActivityStructuring,
		EntitiesInvolved: []string{"ent-1", "ent-ghost"},
		RiskLevel:        models.RiskLevelHigh,
		Narrative:        "multiple transactions below threshold",
	})
	if err != nil {
		t.Fatalf("FileSAR failed: %v", err)
	}

	if len(prop.applied) != 1 || prop.applied[0] != "ent-1" {
		t.Errorf("expected propagation to ent-1 only, got %v", prop.applied)
	}

	e, _ := store.Entity("ent-1")
	if e.RiskScore != 0.5 {
		t.Errorf("expected risk score 0.5 after propagation, got %f", e.RiskScore)
	}

	// The unknown entity is skipped silently, not created.
	if _, ok := store.Entity("ent-ghost"); ok {
		t.Error("SAR filing must not create stub entities")
	}
}

func TestStore_FileSAR_Duplicate(t *testing.T) {
	store := NewStore(nil)

	sar := &models.SAR{ID: "sar-1", RiskLevel: models.RiskLevelLow}
	if err := store.FileSAR(sar); err != nil {
		t.Fatalf("first filing failed: %v", err)
	}
	if err := store.FileSAR(sar); err == nil {
		t.Error("expected error for duplicate sar id")
	}
}

func TestStore_SARs_FilingOrder(t *testing.T) {
	store := NewStore(nil)

	for _, id := range []string{"sar-3", "sar-1", "sar-2"} {
		store.FileSAR(&models.SAR{ID: id, RiskLevel: models.RiskLevelLow})
	}

	sars := store.SARs()
	if len(sars) != 3 {
		t.Fatalf("expected 3 SARs, got %d", len(sars))
	}
	want := []string{"sar-3", "sar-1", "sar-2"}
	for i, sar := range sars {
		if sar.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], sar.ID)
		}
	}
}

func TestStore_GetStats(t *testing.T) {
	store := NewStore(nil)

	store.AddEntity(&models.Entity{ID: "ent-1", Name: "A", Type: "person", RiskScore: 0.9})
	store.AddEntity(&models.Entity{ID: "ent-2", Name: "B", Type: "person", RiskScore: 0.1})
	now := time.Now()
	store.AddTransaction(testTxn("txn-1", "ent-1", "ent-2", 100, now))
	store.AddTransaction(testTxn("txn-2", "ent-1", "ent-2", 200, now))
	store.AddTransaction(testTxn("txn-3", "ent-2", "stub-1", 300, now))
	store.FileSAR(&models.SAR{ID: "sar-1", RiskLevel: models.RiskLevelLow})

	stats := store.GetStats()

	if stats.TotalEntities != 3 {
		t.Errorf("expected 3 entities, got %d", stats.TotalEntities)
	}
	if stats.TotalTransactions != 3 {
		t.Errorf("expected 3 transactions, got %d", stats.TotalTransactions)
	}
	if stats.TotalSARs != 1 {
		t.Errorf("expected 1 SAR, got %d", stats.TotalSARs)
	}
	// txn-1 and txn-2 are parallel edges over the same pair.
	if stats.GraphEdges != 2 {
		t.Errorf("expected 2 distinct edges, got %d", stats.GraphEdges)
	}
	if stats.HighRiskEntities != 1 {
		t.Errorf("expected 1 high-risk entity, got %d", stats.HighRiskEntities)
	}
	if stats.StubEntities != 1 {
		t.Errorf("expected 1 stub entity, got %d", stats.StubEntities)
	}
}
