package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/pkg/models"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(&config.AlertsConfig{
		MinConfidence: 0.2,
		BufferSize:    16,
	})
}

func testPattern(id string, confidence float64) *models.Pattern {
	return &models.Pattern{
		ID:             id,
		Type:           models.PatternStructuring,
		EntityIDs:      []string{"acct-1"},
		TransactionIDs: []string{"txn-1", "txn-2", "txn-3"},
		Confidence:     confidence,
		RiskLevel:      models.RiskLevelMedium,
		Description:    "Detected 3 transactions just below the reporting threshold",
		DetectedAt:     base,
	}
}

func TestRaiseFromPattern_CreatesAlert(t *testing.T) {
	engine := newTestEngine()

	alert := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)
	if alert == nil {
		t.Fatal("expected alert to be raised")
	}
	if _, err := uuid.Parse(alert.ID); err != nil {
		t.Errorf("alert id %q is not a uuid: %v", alert.ID, err)
	}
	if alert.PatternID != "pat-1" {
		t.Errorf("expected pattern id pat-1, got %s", alert.PatternID)
	}
	if alert.PatternType != models.PatternStructuring {
		t.Errorf("expected pattern type structuring, got %s", alert.PatternType)
	}
	if alert.Status != models.AlertStatusActive {
		t.Errorf("expected status active, got %s", alert.Status)
	}
	if alert.Severity != models.RiskLevelMedium {
		t.Errorf("expected severity medium, got %s", alert.Severity)
	}
	if alert.Title != "Structuring activity detected" {
		t.Errorf("unexpected title %q", alert.Title)
	}
	if alert.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %f", alert.Confidence)
	}
	if !alert.CreatedAt.Equal(base) || !alert.UpdatedAt.Equal(base) {
		t.Errorf("expected timestamps %v, got created %v updated %v", base, alert.CreatedAt, alert.UpdatedAt)
	}

	stored, ok := engine.GetAlert(alert.ID)
	if !ok {
		t.Fatal("expected alert to be retrievable")
	}
	if stored.ID != alert.ID {
		t.Errorf("expected stored alert %s, got %s", alert.ID, stored.ID)
	}
}

func TestRaiseFromPattern_ConfidenceGate(t *testing.T) {
	engine := newTestEngine()

	if alert := engine.RaiseFromPattern(testPattern("pat-1", 0.1), base); alert != nil {
		t.Fatalf("expected no alert below the confidence floor, got %s", alert.ID)
	}
	if stats := engine.GetStats(); stats.TotalAlerts != 0 {
		t.Errorf("expected no alerts stored, got %d", stats.TotalAlerts)
	}
}

func TestRaiseFromPattern_RefreshesOpenAlert(t *testing.T) {
	engine := newTestEngine()

	first := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)
	if first == nil {
		t.Fatal("expected alert to be raised")
	}

	later := base.Add(2 * time.Hour)
	refreshed := engine.RaiseFromPattern(testPattern("pat-1", 0.7), later)
	if refreshed == nil {
		t.Fatal("expected refreshed alert")
	}
	if refreshed.ID != first.ID {
		t.Errorf("expected the open alert to be refreshed, got new alert %s", refreshed.ID)
	}
	if refreshed.Confidence != 0.7 {
		t.Errorf("expected refreshed confidence 0.7, got %f", refreshed.Confidence)
	}
	if !refreshed.UpdatedAt.Equal(later) {
		t.Errorf("expected updated at %v, got %v", later, refreshed.UpdatedAt)
	}
	if !refreshed.CreatedAt.Equal(base) {
		t.Errorf("expected created at to stay %v, got %v", base, refreshed.CreatedAt)
	}

	if stats := engine.GetStats(); stats.TotalAlerts != 1 {
		t.Errorf("expected 1 alert after refresh, got %d", stats.TotalAlerts)
	}
}

func TestRaiseFromPattern_ResolvedAlertStartsFresh(t *testing.T) {
	engine := newTestEngine()

	first := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)
	if err := engine.Resolve(first.ID, "analyst", "reviewed and cleared", base.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}

	second := engine.RaiseFromPattern(testPattern("pat-1", 0.6), base.Add(48*time.Hour))
	if second == nil {
		t.Fatal("expected a new alert after resolution")
	}
	if second.ID == first.ID {
		t.Error("expected a fresh alert, got the resolved one")
	}
	if second.Status != models.AlertStatusActive {
		t.Errorf("expected new alert to be active, got %s", second.Status)
	}

	if stats := engine.GetStats(); stats.TotalAlerts != 2 {
		t.Errorf("expected 2 alerts, got %d", stats.TotalAlerts)
	}
}

func TestAcknowledge(t *testing.T) {
	engine := newTestEngine()
	alert := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)

	ackTime := base.Add(30 * time.Minute)
	if err := engine.Acknowledge(alert.ID, "analyst-7", ackTime); err != nil {
		t.Fatalf("unexpected acknowledge error: %v", err)
	}

	stored, _ := engine.GetAlert(alert.ID)
	if stored.Status != models.AlertStatusAcknowledged {
		t.Errorf("expected status acknowledged, got %s", stored.Status)
	}
	if stored.AckedBy != "analyst-7" {
		t.Errorf("expected acked by analyst-7, got %s", stored.AckedBy)
	}
	if stored.AckedAt == nil || !stored.AckedAt.Equal(ackTime) {
		t.Errorf("expected acked at %v, got %v", ackTime, stored.AckedAt)
	}
}

func TestAcknowledge_NotFound(t *testing.T) {
	engine := newTestEngine()

	err := engine.Acknowledge("no-such-alert", "analyst", base)
	if err != ErrAlertNotFound {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestAcknowledge_ResolvedAlert(t *testing.T) {
	engine := newTestEngine()
	alert := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)
	if err := engine.Resolve(alert.ID, "analyst", "", base.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}

	err := engine.Acknowledge(alert.ID, "analyst", base.Add(2*time.Hour))
	if err != ErrAlertResolved {
		t.Errorf("expected ErrAlertResolved, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	engine := newTestEngine()
	alert := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)

	resolveTime := base.Add(time.Hour)
	if err := engine.Resolve(alert.ID, "analyst-3", "false positive", resolveTime); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}

	stored, _ := engine.GetAlert(alert.ID)
	if stored.Status != models.AlertStatusResolved {
		t.Errorf("expected status resolved, got %s", stored.Status)
	}
	if stored.ResolvedBy != "analyst-3" {
		t.Errorf("expected resolved by analyst-3, got %s", stored.ResolvedBy)
	}
	if stored.ResolvedAt == nil || !stored.ResolvedAt.Equal(resolveTime) {
		t.Errorf("expected resolved at %v, got %v", resolveTime, stored.ResolvedAt)
	}
	if stored.Note != "false positive" {
		t.Errorf("expected note to be recorded, got %q", stored.Note)
	}
}

func TestResolve_AlreadyResolvedKeepsOriginal(t *testing.T) {
	engine := newTestEngine()
	alert := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)

	firstResolve := base.Add(time.Hour)
	if err := engine.Resolve(alert.ID, "analyst-3", "cleared", firstResolve); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if err := engine.Resolve(alert.ID, "analyst-9", "again", firstResolve.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected second resolve error: %v", err)
	}

	stored, _ := engine.GetAlert(alert.ID)
	if stored.ResolvedBy != "analyst-3" {
		t.Errorf("expected original resolver to be kept, got %s", stored.ResolvedBy)
	}
	if !stored.ResolvedAt.Equal(firstResolve) {
		t.Errorf("expected original resolve time %v, got %v", firstResolve, stored.ResolvedAt)
	}
	if stored.Note != "cleared" {
		t.Errorf("expected original note to be kept, got %q", stored.Note)
	}
}

func TestResolve_NotFound(t *testing.T) {
	engine := newTestEngine()

	err := engine.Resolve("no-such-alert", "analyst", "", base)
	if err != ErrAlertNotFound {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestListAlerts_Filters(t *testing.T) {
	engine := newTestEngine()

	structuring := testPattern("pat-1", 0.5)
	engine.RaiseFromPattern(structuring, base)

	circular := &models.Pattern{
		ID:             "pat-2",
		Type:           models.PatternCircularTransactions,
		EntityIDs:      []string{"acct-2", "acct-3", "acct-4"},
		TransactionIDs: []string{"txn-10", "txn-11", "txn-12"},
		Confidence:     0.9,
		RiskLevel:      models.RiskLevelCritical,
		Description:    "Detected circular transaction pattern",
		DetectedAt:     base,
	}
	raised := engine.RaiseFromPattern(circular, base.Add(time.Hour))
	if err := engine.Acknowledge(raised.ID, "analyst", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("unexpected acknowledge error: %v", err)
	}

	all := engine.ListAlerts(Filter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(all))
	}
	if all[0].PatternID != "pat-2" {
		t.Errorf("expected newest alert first, got %s", all[0].PatternID)
	}

	active := engine.ListAlerts(Filter{Status: models.AlertStatusActive})
	if len(active) != 1 || active[0].PatternID != "pat-1" {
		t.Errorf("expected only the structuring alert to be active, got %d", len(active))
	}

	critical := engine.ListAlerts(Filter{Severity: models.RiskLevelCritical})
	if len(critical) != 1 || critical[0].PatternID != "pat-2" {
		t.Errorf("expected only the circular alert at critical severity, got %d", len(critical))
	}

	byEntity := engine.ListAlerts(Filter{EntityID: "acct-3"})
	if len(byEntity) != 1 || byEntity[0].PatternID != "pat-2" {
		t.Errorf("expected entity filter to match the circular alert, got %d", len(byEntity))
	}

	limited := engine.ListAlerts(Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit to cap results at 1, got %d", len(limited))
	}
}

func TestRaiseFromPatterns_SkipsLowConfidence(t *testing.T) {
	engine := newTestEngine()

	raised := engine.RaiseFromPatterns([]*models.Pattern{
		testPattern("pat-1", 0.5),
		testPattern("pat-2", 0.05),
		testPattern("pat-3", 0.3),
	}, base)

	if len(raised) != 2 {
		t.Fatalf("expected 2 alerts raised, got %d", len(raised))
	}
	if stats := engine.GetStats(); stats.TotalAlerts != 2 {
		t.Errorf("expected 2 alerts stored, got %d", stats.TotalAlerts)
	}
}

func TestGetStats(t *testing.T) {
	engine := newTestEngine()

	first := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)
	second := engine.RaiseFromPattern(testPattern("pat-2", 0.4), base)
	engine.RaiseFromPattern(testPattern("pat-3", 0.3), base)

	if err := engine.Acknowledge(first.ID, "analyst", base.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected acknowledge error: %v", err)
	}
	if err := engine.Resolve(second.ID, "analyst", "", base.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}

	stats := engine.GetStats()
	if stats.TotalAlerts != 3 {
		t.Errorf("expected 3 total alerts, got %d", stats.TotalAlerts)
	}
	if stats.ActiveAlerts != 1 {
		t.Errorf("expected 1 active alert, got %d", stats.ActiveAlerts)
	}
	if stats.ByStatus["active"] != 1 || stats.ByStatus["acknowledged"] != 1 || stats.ByStatus["resolved"] != 1 {
		t.Errorf("unexpected status breakdown: %v", stats.ByStatus)
	}
	if stats.BySeverity["medium"] != 3 {
		t.Errorf("expected 3 medium alerts, got %v", stats.BySeverity)
	}
	if stats.ByType["structuring"] != 3 {
		t.Errorf("expected 3 structuring alerts, got %v", stats.ByType)
	}
}

func TestAlertCallback(t *testing.T) {
	engine := newTestEngine()

	received := make(chan *models.Alert, 1)
	engine.SetAlertCallback(func(alert *models.Alert) {
		received <- alert
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer engine.Stop()

	raised := engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)

	select {
	case alert := <-received:
		if alert.ID != raised.ID {
			t.Errorf("expected callback for alert %s, got %s", raised.ID, alert.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert callback")
	}
}

func TestCallbackOnlyForNewAlerts(t *testing.T) {
	engine := newTestEngine()

	received := make(chan *models.Alert, 4)
	engine.SetAlertCallback(func(alert *models.Alert) {
		received <- alert
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer engine.Stop()

	engine.RaiseFromPattern(testPattern("pat-1", 0.5), base)
	engine.RaiseFromPattern(testPattern("pat-1", 0.6), base.Add(time.Hour))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first callback")
	}

	select {
	case alert := <-received:
		t.Errorf("expected no callback for a refreshed alert, got %s", alert.ID)
	case <-time.After(100 * time.Millisecond):
	}
}
