package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/db"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// maxCommandBytes bounds the body of a light command.
const maxCommandBytes = 64 << 10

// StateProvider exposes the latest tick snapshot.
type StateProvider interface {
	Snapshot() *models.Snapshot
}

// CommandSink receives raw light commands, the same bytes the controller
// would publish on the lights topic.
type CommandSink interface {
	Store(payload []byte)
}

// APIHandler serves the simulation state and accepts manual light commands.
type APIHandler struct {
	state    StateProvider
	commands CommandSink
	events   db.EventCollection
	runID    string
}

// NewAPIHandler wires the handler. events may be nil when no journal is
// configured.
func NewAPIHandler(state StateProvider, commands CommandSink, events db.EventCollection, runID string) *APIHandler {
	return &APIHandler{state: state, commands: commands, events: events, runID: runID}
}

// Health reports liveness and the last completed tick.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "run_id": h.runID}
	if snap := h.state.Snapshot(); snap != nil {
		resp["tick"] = snap.Tick
		resp["simulation_time_ms"] = snap.SimulationTime
	}
	writeJSON(w, http.StatusOK, resp)
}

// State returns the latest snapshot.
func (h *APIHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := h.state.Snapshot()
	if snap == nil {
		http.Error(w, "Simulation has not ticked yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Lights accepts a light command. Every colour must parse; the simulation
// picks the command up on its next tick.
func (h *APIHandler) Lights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var cmd models.LightCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(cmd) == 0 {
		http.Error(w, "Command has no lights", http.StatusBadRequest)
		return
	}
	for key, token := range cmd {
		if _, err := models.ParseColor(token); err != nil {
			http.Error(w, key+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	h.commands.Store(body)
	log.WithField("lights", len(cmd)).Info("Accepted manual light command")
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(cmd)})
}

// Events lists journalled messages of the current run, newest first.
func (h *APIHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.events == nil {
		http.Error(w, "Event journal not configured", http.StatusNotFound)
		return
	}

	filter := db.EventFilter{
		RunID: r.URL.Query().Get("run_id"),
		Topic: r.URL.Query().Get("topic"),
		Limit: 100,
	}
	if filter.RunID == "" {
		filter.RunID = h.runID
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	events, err := h.events.FindEvents(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to query events")
		http.Error(w, "Failed to query events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
