package core

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// APIServer exposes quest intake, status lookups and diagnostics over HTTP,
// and hosts the agent WebSocket endpoint.
type APIServer struct {
	router      *mux.Router
	intake      *IntakeQueue
	coordinator *Coordinator
	registry    *AgentRegistry
	gateway     *Gateway
	metrics     *Metrics
	startTime   time.Time
}

// NewAPIServer wires the HTTP surface over the coordinator's collaborators.
func NewAPIServer(intake *IntakeQueue, coordinator *Coordinator, registry *AgentRegistry, gateway *Gateway, metrics *Metrics) *APIServer {
	s := &APIServer{
		router:      mux.NewRouter(),
		intake:      intake,
		coordinator: coordinator,
		registry:    registry,
		gateway:     gateway,
		metrics:     metrics,
		startTime:   time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/api/v1/quests", s.handleSubmitQuest).Methods("POST")
	s.router.HandleFunc("/api/v1/quests/{questId}", s.handleGetQuest).Methods("GET")
	s.router.HandleFunc("/api/v1/stats", s.handleGetStats).Methods("GET")
	s.router.HandleFunc("/ws", s.gateway.HandleWebSocket)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *APIServer) handleSubmitQuest(w http.ResponseWriter, r *http.Request) {
	var sub QuestSubmission
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&sub); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := validateSubmission(&sub); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sub.QuestID == "" {
		sub.QuestID = "quest-" + uuid.NewString()
	}

	if err := s.intake.Submit(sub); err != nil {
		s.sendError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	log.Printf("[APIServer] Quest %s queued (budget %d)", sub.QuestID, sub.Budget)
	s.sendJSON(w, http.StatusAccepted, map[string]string{
		"questId": sub.QuestID,
		"status":  "queued",
	})
}

func validateSubmission(sub *QuestSubmission) error {
	if len(sub.Objectives) == 0 {
		return fmt.Errorf("at least one objective is required")
	}
	if sub.Budget <= 0 {
		return fmt.Errorf("budget must be greater than zero")
	}
	return nil
}

// handleGetQuest reports the phase of an active quest. Terminal quests are
// dropped from the active set, so a finished or failed quest reads as
// unknown here.
func (s *APIServer) handleGetQuest(w http.ResponseWriter, r *http.Request) {
	questID := mux.Vars(r)["questId"]
	status, found := s.coordinator.QuestStatus(questID)
	if !found {
		s.sendError(w, http.StatusNotFound, "quest unknown or no longer active")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"questId": questID,
		"status":  string(status),
	})
}

func (s *APIServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, Snapshot{
		ConnectedAgents: s.registry.Count(),
		ActiveQuests:    s.coordinator.ActiveQuestCount(),
		CountsByRole:    s.registry.CountsByRole(),
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *APIServer) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[APIServer] Error marshaling JSON response: %v", err)
		w.Write([]byte(`{"error":"Failed to encode response"}`))
		return
	}
	if _, err := w.Write(jsonData); err != nil {
		log.Printf("[APIServer] Error writing JSON response: %v", err)
	}
}

func (s *APIServer) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

func (s *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[APIServer] %s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *APIServer) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[APIServer] Panic recovered: %v", err)
				s.sendError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
