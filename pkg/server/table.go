package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/sealdeck/sealdeck/pkg/poker"
	"github.com/sealdeck/sealdeck/pkg/reveal"
	"github.com/sealdeck/sealdeck/pkg/statemachine"
)

// TableStateFn is a table lifecycle state function.
type TableStateFn = statemachine.StateFn[Table]

// User is someone seated at the table.
type User struct {
	ID         string
	Name       string
	Seat       int
	Chips      int64
	IsReady    bool
	JoinedAt   time.Time
	Credential reveal.Credential
}

// TableConfig holds configuration for a table.
type TableConfig struct {
	ID            string
	HostID        string
	MinPlayers    int
	MaxPlayers    int
	SmallBlind    int64
	BigBlind      int64
	StartingChips int64
	TurnTimeout   time.Duration
	Log           slog.Logger
}

// Table is the composition root for one table: it seats users, starts
// rounds, wires round events to the notifier, runs the turn scheduler and
// records settlements. All per-hand game state lives in the Round.
type Table struct {
	log         slog.Logger
	config      TableConfig
	coordinator *reveal.Coordinator
	db          Database
	notifier    *Notifier

	mu           sync.RWMutex
	users        map[string]*User
	round        *poker.Round
	roundRef     string
	roundPlayers []*poker.Player
	dealer       int
	handSeq      int

	timerStop chan struct{}

	stateMachine *statemachine.StateMachine[Table]
}

// NewTable creates a table.
func NewTable(cfg TableConfig, coordinator *reveal.Coordinator, db Database, notifier *Notifier) *Table {
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	t := &Table{
		log:         log,
		config:      cfg,
		coordinator: coordinator,
		db:          db,
		notifier:    notifier,
		users:       make(map[string]*User),
	}
	t.stateMachine = statemachine.New(t, tableStateWaitingForPlayers)
	return t
}

// Lifecycle state functions. Each does its check and returns the next state
// function, or itself to stay put.

func tableStateWaitingForPlayers(t *Table) TableStateFn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.allReadyLocked() {
		return tableStatePlayersReady
	}
	return tableStateWaitingForPlayers
}

func tableStatePlayersReady(t *Table) TableStateFn {
	// Waits for the external StartHand trigger, falling back when a seat
	// un-readies or a new unready player joins.
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.allReadyLocked() {
		return tableStateWaitingForPlayers
	}
	return tableStatePlayersReady
}

// allReadyLocked reports whether enough players are seated and every one of
// them is ready. Caller holds the lock.
func (t *Table) allReadyLocked() bool {
	if len(t.users) < t.config.MinPlayers {
		return false
	}
	for _, u := range t.users {
		if !u.IsReady {
			return false
		}
	}
	return true
}

func tableStateHandActive(t *Table) TableStateFn {
	return tableStateHandActive
}

// StateString returns the table lifecycle state name.
func (t *Table) StateString() string {
	current := t.stateMachine.Current()
	if current == nil {
		return "TERMINATED"
	}
	switch fmt.Sprintf("%p", current) {
	case fmt.Sprintf("%p", TableStateFn(tableStateWaitingForPlayers)):
		return "WAITING_FOR_PLAYERS"
	case fmt.Sprintf("%p", TableStateFn(tableStatePlayersReady)):
		return "PLAYERS_READY"
	case fmt.Sprintf("%p", TableStateFn(tableStateHandActive)):
		return "HAND_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// AddUser seats a new user with the table's starting chips and re-evaluates
// the lifecycle; a fresh seat is never ready.
func (t *Table) AddUser(id, name string, cred reveal.Credential) (*User, error) {
	t.mu.Lock()

	if len(t.users) >= t.config.MaxPlayers {
		t.mu.Unlock()
		return nil, fmt.Errorf("table is full")
	}
	if _, exists := t.users[id]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("user already at table")
	}

	taken := make(map[int]bool, len(t.users))
	for _, u := range t.users {
		taken[u.Seat] = true
	}
	seat := -1
	for s := 0; s < t.config.MaxPlayers; s++ {
		if !taken[s] {
			seat = s
			break
		}
	}

	user := &User{
		ID:         id,
		Name:       name,
		Seat:       seat,
		Chips:      t.config.StartingChips,
		JoinedAt:   time.Now(),
		Credential: cred,
	}
	t.users[id] = user
	t.mu.Unlock()

	t.stateMachine.Dispatch(t.stateMachine.Current())

	if t.db != nil {
		if err := t.db.UpsertPlayer(id, name, user.Chips); err != nil {
			t.log.Warnf("table %s: persist player %s: %v", t.config.ID, id, err)
		}
	}
	return user, nil
}

// SetReady marks a user ready and re-evaluates the lifecycle.
func (t *Table) SetReady(userID string, ready bool) error {
	t.mu.Lock()
	u, ok := t.users[userID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("user not at table")
	}
	u.IsReady = ready
	t.mu.Unlock()

	t.stateMachine.Dispatch(t.stateMachine.Current())
	return nil
}

// StartHand begins a new hand once all players are ready. The returned error
// includes reveal-path failures during later stage transitions only via
// HandleAction; this call itself fails fast on setup problems.
func (t *Table) StartHand(ctx context.Context) error {
	if t.StateString() != "PLAYERS_READY" {
		return fmt.Errorf("cannot start hand: table in %s", t.StateString())
	}

	t.mu.Lock()
	if len(t.users) < t.config.MinPlayers {
		t.mu.Unlock()
		return fmt.Errorf("not enough players to start hand")
	}

	seated := make([]*User, 0, len(t.users))
	for _, u := range t.users {
		seated = append(seated, u)
	}
	sort.Slice(seated, func(i, j int) bool { return seated[i].Seat < seated[j].Seat })

	players := make([]*poker.Player, len(seated))
	for i, u := range seated {
		players[i] = poker.NewPlayer(u.ID, u.Name, i, u.Chips)
	}

	t.handSeq++
	gameRef := fmt.Sprintf("%s-%d-%s", t.config.ID, t.handSeq, uuid.NewString()[:8])
	for i, u := range seated {
		if u.Credential != nil {
			t.coordinator.RegisterSeatCredential(gameRef, i, u.Credential)
		}
	}

	playerIDs := make([]string, len(seated))
	for i, u := range seated {
		playerIDs[i] = u.ID
	}

	round, err := poker.NewRound(poker.RoundConfig{
		GameRef:     gameRef,
		Players:     players,
		DealerIndex: t.dealer % len(players),
		SmallBlind:  t.config.SmallBlind,
		BigBlind:    t.config.BigBlind,
		TurnTimeout: t.config.TurnTimeout,
		Revealer:    t.coordinator,
		Log:         t.log,
		Events: poker.RoundEvents{
			TurnChanged: func(seat int, deadline time.Time, legal []poker.ActionKind) {
				t.notifier.NotifyPlayers(playerIDs, Notification{
					Type:    NotificationTurnChanged,
					TableID: t.config.ID,
					Payload: map[string]interface{}{
						"seat":     seat,
						"deadline": deadline,
						"legal":    legal,
					},
				})
			},
			StageAdvanced: func(stage poker.Stage, newCards []poker.Card) {
				t.notifier.NotifyPlayers(playerIDs, Notification{
					Type:    NotificationStageAdvanced,
					TableID: t.config.ID,
					Payload: map[string]interface{}{
						"stage":    stage.String(),
						"newCards": newCards,
					},
				})
			},
			HandComplete: func(winners []poker.Winner, disclosures []poker.Disclosure) {
				t.onHandComplete(gameRef, winners, disclosures, playerIDs)
			},
		},
	})
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("start hand: %w", err)
	}

	t.round = round
	t.roundRef = gameRef
	t.roundPlayers = players
	t.timerStop = make(chan struct{})
	t.mu.Unlock()

	t.stateMachine.SetState(tableStateHandActive)
	go t.runTurnClock(ctx, round, t.timerStop)

	t.notifier.NotifyPlayers(playerIDs, Notification{
		Type:    NotificationHandStarted,
		TableID: t.config.ID,
		Payload: round.Snapshot(),
	})
	t.log.Infof("table %s: hand %s started with %d players", t.config.ID, gameRef, len(players))
	return nil
}

// runTurnClock is the engine-external turn scheduler: it fires Timeout when
// the acting seat's deadline elapses. The deadline is zero while a reveal is
// in flight, which suspends the clock.
func (t *Table) runTurnClock(ctx context.Context, round *poker.Round, stop chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if round.Stage() >= poker.StageShowdown {
				return
			}
			deadline := round.TurnDeadline()
			if deadline.IsZero() || time.Now().Before(deadline) {
				continue
			}
			seat := round.ActingSeat()
			if err := round.Timeout(ctx, seat); err != nil {
				t.log.Errorf("table %s: timeout for seat %d: %v", t.config.ID, seat, err)
			}
		}
	}
}

// HandleAction applies one player action to the active round. Reveal-path
// errors bubble up unchanged for the caller to retry or abort the hand.
func (t *Table) HandleAction(ctx context.Context, playerID string, kind poker.ActionKind, amount int64) error {
	t.mu.RLock()
	round := t.round
	seat, ok := t.seatOf(playerID)
	t.mu.RUnlock()

	if round == nil {
		return fmt.Errorf("no hand in progress")
	}
	if !ok {
		return fmt.Errorf("user not at table")
	}

	switch kind {
	case poker.ActionFold:
		return round.Fold(ctx, seat)
	case poker.ActionCheck:
		return round.Check(ctx, seat)
	case poker.ActionCall:
		return round.Call(ctx, seat)
	case poker.ActionRaise:
		return round.Raise(ctx, seat, amount)
	case poker.ActionAllIn:
		return round.AllIn(ctx, seat)
	default:
		return fmt.Errorf("unknown action %q", kind)
	}
}

// seatOf maps a player ID to its seat in the active round. Caller holds the
// lock.
func (t *Table) seatOf(playerID string) (int, bool) {
	for seat, p := range t.roundPlayers {
		if p.ID == playerID {
			return seat, true
		}
	}
	return 0, false
}

// onHandComplete syncs chips back to users, records settlements and returns
// the table to the ready state.
func (t *Table) onHandComplete(gameRef string, winners []poker.Winner, disclosures []poker.Disclosure, playerIDs []string) {
	t.mu.Lock()
	for _, p := range t.roundPlayers {
		if u, ok := t.users[p.ID]; ok {
			u.Chips = p.Chips
			if t.db != nil {
				if err := t.db.UpsertPlayer(u.ID, u.Name, u.Chips); err != nil {
					t.log.Warnf("table %s: persist chips for %s: %v", t.config.ID, u.ID, err)
				}
			}
		}
	}
	if t.db != nil {
		for _, w := range winners {
			if w.SeatIndex >= 0 && w.SeatIndex < len(t.roundPlayers) {
				p := t.roundPlayers[w.SeatIndex]
				if err := t.db.RecordSettlement(gameRef, p.ID, w.SeatIndex, w.Amount, w.HandRank); err != nil {
					t.log.Warnf("table %s: record settlement for %s: %v", t.config.ID, p.ID, err)
				}
			}
		}
	}
	t.dealer++
	stop := t.timerStop
	t.timerStop = nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	t.coordinator.EndHand(gameRef)
	t.stateMachine.SetState(tableStatePlayersReady)

	t.notifier.NotifyPlayers(playerIDs, Notification{
		Type:    NotificationHandComplete,
		TableID: t.config.ID,
		Payload: map[string]interface{}{
			"winners":     winners,
			"disclosures": disclosures,
		},
	})
	t.log.Infof("table %s: hand %s complete, %d winner(s)", t.config.ID, gameRef, len(winners))
}

// AbortHand ends the active hand without settlement, refunding each seat's
// hand contribution. Used after reveal retries are exhausted.
func (t *Table) AbortHand(reason string) error {
	t.mu.Lock()
	round := t.round
	if round == nil {
		t.mu.Unlock()
		return fmt.Errorf("no hand in progress")
	}
	gameRef := t.roundRef
	players := t.roundPlayers
	stop := t.timerStop
	t.timerStop = nil
	t.round = nil
	t.mu.Unlock()

	round.Abort()
	if stop != nil {
		close(stop)
	}

	var playerIDs []string
	t.mu.Lock()
	for _, p := range players {
		if u, ok := t.users[p.ID]; ok {
			// Refund policy: the full hand contribution goes back. TotalBet
			// already includes the current street's unswept bet.
			u.Chips = p.Chips + p.TotalBet
			playerIDs = append(playerIDs, u.ID)
		}
	}
	t.mu.Unlock()

	t.coordinator.EndHand(gameRef)
	t.stateMachine.SetState(tableStatePlayersReady)

	t.notifier.NotifyPlayers(playerIDs, Notification{
		Type:    NotificationHandAborted,
		TableID: t.config.ID,
		Payload: map[string]interface{}{"reason": reason},
	})
	t.log.Warnf("table %s: hand %s aborted: %s", t.config.ID, gameRef, reason)
	return nil
}

// TableSnapshot is the table's broadcastable state.
type TableSnapshot struct {
	ID       string               `json:"id"`
	State    string               `json:"state"`
	Users    []UserView           `json:"users"`
	Round    *poker.RoundSnapshot `json:"round,omitempty"`
	BigBlind int64                `json:"bigBlind"`
}

// UserView is a user's public state.
type UserView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Seat    int    `json:"seat"`
	Chips   int64  `json:"chips"`
	IsReady bool   `json:"isReady"`
}

// Snapshot returns the table's current public state.
func (t *Table) Snapshot() TableSnapshot {
	t.mu.RLock()
	round := t.round
	users := make([]UserView, 0, len(t.users))
	for _, u := range t.users {
		users = append(users, UserView{
			ID:      u.ID,
			Name:    u.Name,
			Seat:    u.Seat,
			Chips:   u.Chips,
			IsReady: u.IsReady,
		})
	}
	t.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Seat < users[j].Seat })

	snap := TableSnapshot{
		ID:       t.config.ID,
		State:    t.StateString(),
		Users:    users,
		BigBlind: t.config.BigBlind,
	}
	if round != nil {
		rs := round.Snapshot()
		snap.Round = &rs
	}
	return snap
}
