package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/savegress/fundlens/internal/alerts"
	"github.com/savegress/fundlens/internal/audit"
	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/internal/detect"
	"github.com/savegress/fundlens/internal/graph"
	"github.com/savegress/fundlens/internal/narrative"
	"github.com/savegress/fundlens/internal/risk"
	"github.com/savegress/fundlens/pkg/models"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store     *graph.Store
	detector  *detect.Detector
	analyzer  *risk.Analyzer
	narrative *narrative.Engine
	alerts    *alerts.Engine
	audit     *audit.Logger
	config    *config.Config
}

// NewHandlers creates new handlers
func NewHandlers(store *graph.Store, detector *detect.Detector, analyzer *risk.Analyzer, narrativeEngine *narrative.Engine, alertEngine *alerts.Engine, auditLogger *audit.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		store:     store,
		detector:  detector,
		analyzer:  analyzer,
		narrative: narrativeEngine,
		alerts:    alertEngine,
		audit:     auditLogger,
		config:    cfg,
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"service":     "fundlens",
		"environment": h.config.Server.Environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
		"components": map[string]string{
			"alerts": componentStatus(h.alerts.Running()),
			"audit":  componentStatus(h.audit.Running()),
		},
	})
}

func componentStatus(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

// Entity handlers

// CreateEntity adds an entity to the graph
func (h *Handlers) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string            `json:"entity_id"`
		Name        string            `json:"name"`
		Type        string            `json:"entity_type"`
		Identifiers map[string]string `json:"identifiers"`
		RiskScore   float64           `json:"risk_score"`
		RiskLevel   string            `json:"risk_level"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "missing field: entity_id")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "missing field: name")
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "missing field: entity_type")
		return
	}
	// The stored risk level is derived from the score; a supplied level
	// is validated but never trusted over the score.
	if req.RiskLevel != "" {
		if _, err := models.ParseRiskLevel(req.RiskLevel); err != nil {
			respondError(w, http.StatusBadRequest, "invalid risk_level: "+req.RiskLevel)
			return
		}
	}

	entity := &models.Entity{
		ID:          req.ID,
		Name:        req.Name,
		Type:        req.Type,
		Identifiers: req.Identifiers,
		RiskScore:   req.RiskScore,
		Metadata:    req.Metadata,
	}
	if err := h.store.AddEntity(entity); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.audit.Record(audit.ActionEntityCreated, "entity", entity.ID, entity.Name)

	stored, _ := h.store.Entity(entity.ID)
	respond(w, http.StatusCreated, stored)
}

// GetEntity gets an entity by ID
func (h *Handlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entity, ok := h.store.Entity(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Entity not found")
		return
	}

	respond(w, http.StatusOK, entity)
}

// DetectPatterns runs pattern detection for an entity
func (h *Handlers) DetectPatterns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asOf := time.Now()

	snap := h.store.Snapshot()
	patterns := h.detector.EntityPatterns(snap, id, asOf)

	h.alerts.RaiseFromPatterns(patterns, asOf)
	h.audit.Record(audit.ActionPatternsDetected, "entity", id, fmt.Sprintf("%d patterns", len(patterns)))

	respond(w, http.StatusOK, map[string]interface{}{
		"entity_id":         id,
		"patterns_detected": len(patterns),
		"patterns":          patterns,
	})
}

// RiskReport builds a comprehensive risk report for an entity
func (h *Handlers) RiskReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asOf := time.Now()

	snap := h.store.Snapshot()
	patterns := h.detector.EntityPatterns(snap, id, asOf)
	report := h.analyzer.BuildReport(snap, id, asOf, patterns)

	h.audit.Record(audit.ActionReportGenerated, "entity", id, report.ID)

	respond(w, http.StatusOK, report)
}

// EntityGraph returns the subgraph around an entity
func (h *Handlers) EntityGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	depth := 2
	if v := r.URL.Query().Get("depth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			depth = n
		}
	}

	snap := h.store.Snapshot()
	respond(w, http.StatusOK, map[string]interface{}{
		"entity_id": id,
		"graph":     snap.GraphData(id, depth),
	})
}

// Transaction handlers

// CreateTransaction records a transaction edge
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string            `json:"transaction_id"`
		Timestamp   time.Time         `json:"timestamp"`
		Amount      *decimal.Decimal  `json:"amount"`
		Currency    string            `json:"currency"`
		SenderID    string            `json:"sender_id"`
		ReceiverID  string            `json:"receiver_id"`
		Type        string            `json:"transaction_type"`
		Description string            `json:"description"`
		Location    string            `json:"location"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "missing field: transaction_id")
		return
	}
	if req.Timestamp.IsZero() {
		respondError(w, http.StatusBadRequest, "missing field: timestamp")
		return
	}
	if req.Amount == nil {
		respondError(w, http.StatusBadRequest, "missing field: amount")
		return
	}
	if req.SenderID == "" {
		respondError(w, http.StatusBadRequest, "missing field: sender_id")
		return
	}
	if req.ReceiverID == "" {
		respondError(w, http.StatusBadRequest, "missing field: receiver_id")
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "missing field: transaction_type")
		return
	}

	if _, ok := h.store.Transaction(req.ID); ok {
		respondError(w, http.StatusConflict, "Transaction already exists")
		return
	}

	if req.Currency == "" {
		req.Currency = "USD"
	}

	txn := &models.Transaction{
		ID:          req.ID,
		Timestamp:   req.Timestamp,
		Amount:      *req.Amount,
		Currency:    req.Currency,
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Type:        req.Type,
		Description: req.Description,
		Location:    req.Location,
		Metadata:    req.Metadata,
	}
	if err := h.store.AddTransaction(txn); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.audit.Record(audit.ActionTransactionRecorded, "transaction", txn.ID, txn.Amount.String()+" "+txn.Currency)

	respond(w, http.StatusCreated, txn)
}

// SAR handlers

// CreateSAR files a suspicious activity report
func (h *Handlers) CreateSAR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID                   string            `json:"sar_id"`
		FilingDate           time.Time         `json:"filing_date"`
		ActivityType         string            `json:"activity_type"`
		EntitiesInvolved     []string          `json:"entities_involved"`
		TransactionsInvolved []string          `json:"transactions_involved"`
		Narrative            string            `json:"narrative"`
		RiskLevel            string            `json:"risk_level"`
		AmountInvolved       *decimal.Decimal  `json:"amount_involved"`
		PeriodStart          time.Time         `json:"time_period_start"`
		PeriodEnd            time.Time         `json:"time_period_end"`
		Metadata             map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "missing field: sar_id")
		return
	}
	if req.FilingDate.IsZero() {
		respondError(w, http.StatusBadRequest, "missing field: filing_date")
		return
	}
	if req.ActivityType == "" {
		respondError(w, http.StatusBadRequest, "missing field: activity_type")
		return
	}
	if req.EntitiesInvolved == nil {
		respondError(w, http.StatusBadRequest, "missing field: entities_involved")
		return
	}
	if req.TransactionsInvolved == nil {
		respondError(w, http.StatusBadRequest, "missing field: transactions_involved")
		return
	}
	if req.Narrative == "" {
		respondError(w, http.StatusBadRequest, "missing field: narrative")
		return
	}
	if req.RiskLevel == "" {
		respondError(w, http.StatusBadRequest, "missing field: risk_level")
		return
	}
	if req.AmountInvolved == nil {
		respondError(w, http.StatusBadRequest, "missing field: amount_involved")
		return
	}
	if req.PeriodStart.IsZero() {
		respondError(w, http.StatusBadRequest, "missing field: time_period_start")
		return
	}
	if req.PeriodEnd.IsZero() {
		respondError(w, http.StatusBadRequest, "missing field: time_period_end")
		return
	}

	activityType, err := models.ParseActivityType(req.ActivityType)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid activity_type: "+req.ActivityType)
		return
	}
	riskLevel, err := models.ParseRiskLevel(req.RiskLevel)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid risk_level: "+req.RiskLevel)
		return
	}

	if _, ok := h.store.SAR(req.ID); ok {
		respondError(w, http.StatusConflict, "SAR already exists")
		return
	}

	sar := &models.SAR{
		ID:                   req.ID,
		FilingDate:           req.FilingDate,
		ActivityType:         activityType,
		EntitiesInvolved:     req.EntitiesInvolved,
		TransactionsInvolved: req.TransactionsInvolved,
		Narrative:            req.Narrative,
		RiskLevel:            riskLevel,
		AmountInvolved:       *req.AmountInvolved,
		PeriodStart:          req.PeriodStart,
		PeriodEnd:            req.PeriodEnd,
		Metadata:             req.Metadata,
	}
	if err := h.store.FileSAR(sar); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis := h.narrative.AnalyzeSAR(sar)

	h.audit.Record(audit.ActionSARFiled, "sar", sar.ID, string(sar.ActivityType))

	respond(w, http.StatusCreated, map[string]interface{}{
		"sar":      sar,
		"analysis": analysis,
	})
}

// GetSAR gets a SAR by ID
func (h *Handlers) GetSAR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sar, ok := h.store.SAR(id)
	if !ok {
		respondError(w, http.StatusNotFound, "SAR not found")
		return
	}

	respond(w, http.StatusOK, sar)
}

// SimilarSARs finds SARs with similar narratives
func (h *Handlers) SimilarSARs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sar, ok := h.store.SAR(id)
	if !ok {
		respondError(w, http.StatusNotFound, "SAR not found")
		return
	}

	threshold := 0.5
	if v := r.URL.Query().Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = f
		}
	}

	matches := h.narrative.FindSimilar(sar, h.store.SARs(), threshold)

	results := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]interface{}{
			"sar_id":        m.SAR.ID,
			"similarity":    m.Similarity,
			"activity_type": m.SAR.ActivityType,
			"risk_level":    m.SAR.RiskLevel,
			"narrative":     previewNarrative(m.SAR.Narrative),
		})
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"sar_id":        id,
		"similar_count": len(results),
		"similar_sars":  results,
	})
}

// previewNarrative truncates a narrative for list responses. The cut
// counts runes, not bytes, so multi-byte text is never split mid-character.
func previewNarrative(narrative string) string {
	runes := []rune(narrative)
	if len(runes) <= 200 {
		return narrative
	}
	return string(runes[:200]) + "..."
}

// Alert handlers

// ListAlerts lists alerts with optional filters
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := alerts.Filter{
		Limit: 100,
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = models.AlertStatus(status)
	}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		filter.Severity = models.RiskLevel(severity)
	}
	if entity := r.URL.Query().Get("entity"); entity != "" {
		filter.EntityID = entity
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	respond(w, http.StatusOK, h.alerts.ListAlerts(filter))
}

// GetAlert gets an alert by ID
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, ok := h.alerts.GetAlert(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Alert not found")
		return
	}

	respond(w, http.StatusOK, alert)
}

// AcknowledgeAlert marks an alert as acknowledged
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		By string `json:"by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.By == "" {
		respondError(w, http.StatusBadRequest, "missing field: by")
		return
	}

	if err := h.alerts.Acknowledge(id, req.By, time.Now()); err != nil {
		switch err {
		case alerts.ErrAlertNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		case alerts.ErrAlertResolved:
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.audit.Record(audit.ActionAlertAcknowledged, "alert", id, req.By)

	alert, _ := h.alerts.GetAlert(id)
	respond(w, http.StatusOK, alert)
}

// ResolveAlert closes an alert
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		By   string `json:"by"`
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.By == "" {
		respondError(w, http.StatusBadRequest, "missing field: by")
		return
	}

	if err := h.alerts.Resolve(id, req.By, req.Note, time.Now()); err != nil {
		if err == alerts.ErrAlertNotFound {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.audit.Record(audit.ActionAlertResolved, "alert", id, req.By)

	alert, _ := h.alerts.GetAlert(id)
	respond(w, http.StatusOK, alert)
}

// GetAlertStats gets alerting statistics
func (h *Handlers) GetAlertStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.alerts.GetStats())
}

// Audit handlers

// ListAuditEvents lists audit events with optional filters
func (h *Handlers) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	filter := audit.EventFilter{
		Limit: 100,
	}

	if action := r.URL.Query().Get("action"); action != "" {
		filter.Action = action
	}
	if resource := r.URL.Query().Get("resource"); resource != "" {
		filter.Resource = resource
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	respond(w, http.StatusOK, h.audit.ListEvents(filter))
}

// GetSystemStats gets overall system statistics
func (h *Handlers) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"graph":  h.store.GetStats(),
		"alerts": h.alerts.GetStats(),
		"audit":  h.audit.GetStats(),
	})
}

// Helper functions

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
