package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/decred/slog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/sealdeck/sealdeck/pkg/poker"
	"github.com/sealdeck/sealdeck/pkg/reveal"
)

// Server exposes the table API over HTTP and pushes events over websockets.
type Server struct {
	log         slog.Logger
	logBackend  *logging.LogBackend
	config      Config
	registry    *Registry
	coordinator *reveal.Coordinator
	db          Database
	notifier    *Notifier
	upgrader    websocket.Upgrader
}

// NewServer wires the controller's collaborators together.
func NewServer(cfg Config, registry *Registry, coordinator *reveal.Coordinator, db Database, logBackend *logging.LogBackend) *Server {
	return &Server{
		log:         logBackend.Logger("SRVR"),
		logBackend:  logBackend,
		config:      cfg,
		registry:    registry,
		coordinator: coordinator,
		db:          db,
		notifier:    NewNotifier(logBackend.Logger("NTFY")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Notifier returns the server's notifier for table wiring.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/tables", s.handleCreateTable).Methods(http.MethodPost)
	r.HandleFunc("/v1/tables", s.handleListTables).Methods(http.MethodGet)
	r.HandleFunc("/v1/tables/{id}", s.handleTableState).Methods(http.MethodGet)
	r.HandleFunc("/v1/tables/{id}/join", s.handleJoin).Methods(http.MethodPost)
	r.HandleFunc("/v1/tables/{id}/ready", s.handleReady).Methods(http.MethodPost)
	r.HandleFunc("/v1/tables/{id}/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/v1/tables/{id}/actions", s.handleAction).Methods(http.MethodPost)
	r.HandleFunc("/v1/ws", s.handleWebsocket).Methods(http.MethodGet)
	return r
}

type createTableRequest struct {
	HostID        string `json:"hostId"`
	MinPlayers    int    `json:"minPlayers"`
	MaxPlayers    int    `json:"maxPlayers"`
	SmallBlind    int64  `json:"smallBlind"`
	BigBlind      int64  `json:"bigBlind"`
	StartingChips int64  `json:"startingChips"`
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg := TableConfig{
		HostID:        req.HostID,
		MinPlayers:    req.MinPlayers,
		MaxPlayers:    req.MaxPlayers,
		SmallBlind:    req.SmallBlind,
		BigBlind:      req.BigBlind,
		StartingChips: req.StartingChips,
		TurnTimeout:   s.config.TurnTimeout,
		Log:           s.logBackend.Logger("TABL"),
	}
	if cfg.MinPlayers < 2 {
		cfg.MinPlayers = 2
	}
	if cfg.MaxPlayers <= 0 || cfg.MaxPlayers > reveal.MaxSeats {
		cfg.MaxPlayers = reveal.MaxSeats
	}
	if cfg.SmallBlind <= 0 {
		cfg.SmallBlind = s.config.SmallBlind
	}
	if cfg.BigBlind <= 0 {
		cfg.BigBlind = s.config.BigBlind
	}
	if cfg.StartingChips <= 0 {
		cfg.StartingChips = s.config.StartingChips
	}

	table, err := s.registry.CreateTable(cfg, TableDeps{
		Coordinator: s.coordinator,
		DB:          s.db,
		Notifier:    s.notifier,
	})
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, table.Snapshot())
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tables": s.registry.List()})
}

func (s *Server) handleTableState(w http.ResponseWriter, r *http.Request) {
	table, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("table not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, table.Snapshot())
}

type joinRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	table, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("table not found"))
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	// Each joining seat gets its own signing credential; hole cards are only
	// ever decrypted under it.
	cred, err := reveal.GenerateCredential()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	user, err := table.AddUser(req.PlayerID, req.Name, cred)
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}

	s.notifier.NotifyPlayers(s.tablePlayerIDs(table), Notification{
		Type:    NotificationPlayerJoined,
		TableID: table.config.ID,
		Payload: map[string]interface{}{"playerId": user.ID, "seat": user.Seat},
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"seat":       user.Seat,
		"chips":      user.Chips,
		"credential": cred.PublicID(),
	})
}

type readyRequest struct {
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	table, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("table not found"))
		return
	}
	var req readyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := table.SetReady(req.PlayerID, req.Ready); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, table.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	table, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("table not found"))
		return
	}
	if err := table.StartHand(r.Context()); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, table.Snapshot())
}

type actionRequest struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	Amount   int64  `json:"amount,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	table, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("table not found"))
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	err := table.HandleAction(r.Context(), req.PlayerID, poker.ActionKind(req.Action), req.Amount)
	if err != nil {
		var illegal *poker.IllegalActionError
		switch {
		case errors.As(err, &illegal):
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  illegal.Error(),
				"seat":   illegal.Seat,
				"stage":  illegal.Stage.String(),
				"action": illegal.Action,
			})
		case errors.Is(err, reveal.ErrNotReady),
			errors.Is(err, reveal.ErrAccessDenied),
			errors.Is(err, reveal.ErrDecryptExhausted),
			errors.Is(err, reveal.ErrMalformedLedgerState):
			// The stage could not get its cards; the hand is stalled until
			// the operator retries or aborts.
			s.log.Errorf("table %s: reveal failure: %v", table.config.ID, err)
			s.writeError(w, http.StatusBadGateway, err)
		default:
			s.writeError(w, http.StatusConflict, err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, table.Snapshot())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("player query parameter required"))
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("websocket upgrade for %s failed: %v", playerID, err)
		return
	}
	s.notifier.Register(playerID, conn)
}

func (s *Server) tablePlayerIDs(table *Table) []string {
	snap := table.Snapshot()
	ids := make([]string, len(snap.Users))
	for i, u := range snap.Users {
		ids[i] = u.ID
	}
	return ids
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debugf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
