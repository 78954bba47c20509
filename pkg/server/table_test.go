package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/sealdeck/sealdeck/pkg/poker"
	"github.com/sealdeck/sealdeck/pkg/reveal"
)

func createTestLogBackend(t *testing.T) *logging.LogBackend {
	t.Helper()
	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        "",
		DebugLevel:     "error",
		MaxLogFiles:    1,
		MaxBufferLines: 100,
	})
	require.NoError(t, err)
	return logBackend
}

type settlementRec struct {
	gameRef  string
	playerID string
	seat     int
	amount   int64
	handRank string
}

type fakeDB struct {
	mu          sync.Mutex
	players     map[string]int64
	settlements []settlementRec
}

func newFakeDB() *fakeDB {
	return &fakeDB{players: make(map[string]int64)}
}

func (f *fakeDB) GetPlayerChips(playerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chips, ok := f.players[playerID]
	if !ok {
		return 0, errors.New("player not found")
	}
	return chips, nil
}

func (f *fakeDB) UpsertPlayer(playerID, name string, chips int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[playerID] = chips
	return nil
}

func (f *fakeDB) RecordSettlement(gameRef, playerID string, seat int, amount int64, handRank string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settlements = append(f.settlements, settlementRec{gameRef, playerID, seat, amount, handRank})
	return nil
}

func (f *fakeDB) Close() error { return nil }

// The table tests drive hands that settle by folding, so the ledger and
// decrypter are never consulted; unreachable fakes make that explicit.
type unreachableLedger struct{}

func (unreachableLedger) ReadGameAccount(ctx context.Context, gameRef string) ([]byte, error) {
	return nil, errors.New("ledger must not be read in this test")
}

type unreachableDecrypter struct{}

func (unreachableDecrypter) Decrypt(ctx context.Context, req reveal.RevealRequest) (reveal.RevealResult, error) {
	return reveal.RevealResult{}, errors.New("decrypter must not be called in this test")
}

func createTestCoordinator(t *testing.T) *reveal.Coordinator {
	t.Helper()
	backend, err := reveal.GenerateCredential()
	require.NoError(t, err)
	c, err := reveal.NewCoordinator(reveal.Config{
		Ledger:    unreachableLedger{},
		Decrypter: unreachableDecrypter{},
		Backend:   backend,
		Retry:     reveal.RetryPolicy{MaxAttempts: 1, Backoff: reveal.FixedBackoff(0)},
	})
	require.NoError(t, err)
	return c
}

func createTestTable(t *testing.T, db Database) *Table {
	t.Helper()
	logBackend := createTestLogBackend(t)
	return NewTable(TableConfig{
		ID:            "t1",
		MinPlayers:    2,
		MaxPlayers:    6,
		SmallBlind:    10,
		BigBlind:      20,
		StartingChips: 1000,
		Log:           logBackend.Logger("TABL"),
	}, createTestCoordinator(t), db, NewNotifier(logBackend.Logger("NTFY")))
}

func addTestUser(t *testing.T, table *Table, id string) *User {
	t.Helper()
	cred, err := reveal.GenerateCredential()
	require.NoError(t, err)
	u, err := table.AddUser(id, id, cred)
	require.NoError(t, err)
	return u
}

func TestTableSeating(t *testing.T) {
	db := newFakeDB()
	table := createTestTable(t, db)

	alice := addTestUser(t, table, "alice")
	bob := addTestUser(t, table, "bob")

	assert.Equal(t, 0, alice.Seat)
	assert.Equal(t, 1, bob.Seat)
	assert.Equal(t, int64(1000), alice.Chips)

	// Duplicate join is rejected.
	_, err := table.AddUser("alice", "alice", nil)
	assert.Error(t, err)

	// Joins are persisted.
	chips, err := db.GetPlayerChips("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), chips)
}

func TestTableFullRejectsJoin(t *testing.T) {
	table := createTestTable(t, newFakeDB())
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		addTestUser(t, table, id)
	}
	_, err := table.AddUser("g", "g", nil)
	assert.Error(t, err)
}

func TestTableLifecycle(t *testing.T) {
	table := createTestTable(t, newFakeDB())
	assert.Equal(t, "WAITING_FOR_PLAYERS", table.StateString())

	addTestUser(t, table, "alice")
	require.NoError(t, table.SetReady("alice", true))
	// One ready player is below the minimum.
	assert.Equal(t, "WAITING_FOR_PLAYERS", table.StateString())

	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("bob", true))
	assert.Equal(t, "PLAYERS_READY", table.StateString())

	assert.Error(t, table.SetReady("nobody", true))
}

func TestStartHandRequiresReadyState(t *testing.T) {
	table := createTestTable(t, newFakeDB())
	addTestUser(t, table, "alice")

	err := table.StartHand(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WAITING_FOR_PLAYERS")
}

func TestHandFoldOutLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	table := createTestTable(t, db)

	addTestUser(t, table, "alice")
	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("alice", true))
	require.NoError(t, table.SetReady("bob", true))

	require.NoError(t, table.StartHand(ctx))
	assert.Equal(t, "HAND_ACTIVE", table.StateString())

	snap := table.Snapshot()
	require.NotNil(t, snap.Round)
	assert.Equal(t, "PRE_FLOP", snap.Round.Stage)

	// Heads-up: the dealer (seat 0, alice) acts first pre-flop and folds.
	require.NoError(t, table.HandleAction(ctx, "alice", poker.ActionFold, 0))

	assert.Equal(t, "PLAYERS_READY", table.StateString())

	// Bob wins alice's matched small blind.
	snap = table.Snapshot()
	require.Len(t, snap.Users, 2)
	assert.Equal(t, int64(990), snap.Users[0].Chips)
	assert.Equal(t, int64(1010), snap.Users[1].Chips)

	// Chip sync and settlement are persisted.
	chips, err := db.GetPlayerChips("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1010), chips)

	db.mu.Lock()
	defer db.mu.Unlock()
	require.Len(t, db.settlements, 1)
	assert.Equal(t, "bob", db.settlements[0].playerID)
	assert.Equal(t, int64(20), db.settlements[0].amount)
}

func TestDealerRotatesBetweenHands(t *testing.T) {
	ctx := context.Background()
	table := createTestTable(t, newFakeDB())

	addTestUser(t, table, "alice")
	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("alice", true))
	require.NoError(t, table.SetReady("bob", true))

	require.NoError(t, table.StartHand(ctx))
	first := table.Snapshot().Round.DealerIndex
	require.NoError(t, table.HandleAction(ctx, "alice", poker.ActionFold, 0))

	require.NoError(t, table.StartHand(ctx))
	second := table.Snapshot().Round.DealerIndex
	assert.NotEqual(t, first, second, "button must move between hands")

	// Clean up the open hand.
	require.NoError(t, table.AbortHand("test teardown"))
}

func TestHandleActionOutOfTurn(t *testing.T) {
	ctx := context.Background()
	table := createTestTable(t, newFakeDB())

	addTestUser(t, table, "alice")
	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("alice", true))
	require.NoError(t, table.SetReady("bob", true))
	require.NoError(t, table.StartHand(ctx))

	err := table.HandleAction(ctx, "bob", poker.ActionCheck, 0)
	var illegal *poker.IllegalActionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, 1, illegal.Seat)

	assert.Error(t, table.HandleAction(ctx, "stranger", poker.ActionFold, 0))
	assert.Error(t, table.HandleAction(ctx, "alice", poker.ActionKind("splash"), 0))

	require.NoError(t, table.AbortHand("test teardown"))
}

func TestAbortHandRefunds(t *testing.T) {
	ctx := context.Background()
	table := createTestTable(t, newFakeDB())

	addTestUser(t, table, "alice")
	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("alice", true))
	require.NoError(t, table.SetReady("bob", true))
	require.NoError(t, table.StartHand(ctx))

	// Blinds are already posted; the abort hands them back.
	require.NoError(t, table.AbortHand("reveal unavailable"))

	assert.Equal(t, "PLAYERS_READY", table.StateString())
	snap := table.Snapshot()
	assert.Equal(t, int64(1000), snap.Users[0].Chips)
	assert.Equal(t, int64(1000), snap.Users[1].Chips)

	assert.Error(t, table.AbortHand("again"), "no hand left to abort")
}

func TestUnreadyReturnsToWaiting(t *testing.T) {
	table := createTestTable(t, newFakeDB())
	addTestUser(t, table, "alice")
	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("alice", true))
	require.NoError(t, table.SetReady("bob", true))
	require.Equal(t, "PLAYERS_READY", table.StateString())

	require.NoError(t, table.SetReady("alice", false))
	assert.Equal(t, "WAITING_FOR_PLAYERS", table.StateString())

	err := table.StartHand(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WAITING_FOR_PLAYERS")

	// A fresh join is never ready, so it also drops the table out of ready.
	require.NoError(t, table.SetReady("alice", true))
	require.Equal(t, "PLAYERS_READY", table.StateString())
	addTestUser(t, table, "carol")
	assert.Equal(t, "WAITING_FOR_PLAYERS", table.StateString())
}

func TestConcurrentJoinAndReady(t *testing.T) {
	table := createTestTable(t, newFakeDB())
	ids := []string{"a", "b", "c", "d", "e", "f"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			cred, err := reveal.GenerateCredential()
			require.NoError(t, err)
			if _, err := table.AddUser(id, id, cred); err != nil {
				return
			}
			require.NoError(t, table.SetReady(id, true))
		}(id)
	}
	wg.Wait()

	// Concurrent dispatches may finish in any order; one serial re-ready
	// settles the lifecycle deterministically.
	require.NoError(t, table.SetReady(ids[0], true))
	assert.Equal(t, "PLAYERS_READY", table.StateString())
	assert.Len(t, table.Snapshot().Users, len(ids))
}

func TestTurnClockFoldsIdleSeat(t *testing.T) {
	ctx := context.Background()
	logBackend := createTestLogBackend(t)
	table := NewTable(TableConfig{
		ID:            "t-clock",
		MinPlayers:    2,
		MaxPlayers:    6,
		SmallBlind:    10,
		BigBlind:      20,
		StartingChips: 1000,
		TurnTimeout:   300 * time.Millisecond,
		Log:           logBackend.Logger("TABL"),
	}, createTestCoordinator(t), newFakeDB(), NewNotifier(logBackend.Logger("NTFY")))

	addTestUser(t, table, "alice")
	addTestUser(t, table, "bob")
	require.NoError(t, table.SetReady("alice", true))
	require.NoError(t, table.SetReady("bob", true))
	require.NoError(t, table.StartHand(ctx))

	// Alice owes half the big blind and never acts; the scheduler folds her
	// and the hand resolves.
	require.Eventually(t, func() bool {
		return table.StateString() == "PLAYERS_READY"
	}, 5*time.Second, 50*time.Millisecond)

	snap := table.Snapshot()
	assert.Equal(t, int64(990), snap.Users[0].Chips)
	assert.Equal(t, int64(1010), snap.Users[1].Chips)
}
