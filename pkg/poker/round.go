package poker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
)

// Stage is the closed betting-stage enumeration. Stages advance strictly
// forward; Ended is terminal and a new hand starts a fresh Round.
type Stage int

const (
	StagePreFlop Stage = iota
	StageFlop
	StageTurn
	StageRiver
	StageShowdown
	StageEnded
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StagePreFlop:
		return "PRE_FLOP"
	case StageFlop:
		return "FLOP"
	case StageTurn:
		return "TURN"
	case StageRiver:
		return "RIVER"
	case StageShowdown:
		return "SHOWDOWN"
	case StageEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Next returns the stage that follows s. Total over all stages; Ended maps
// to itself. This is the only place stage order is defined.
func (s Stage) Next() Stage {
	switch s {
	case StagePreFlop:
		return StageFlop
	case StageFlop:
		return StageTurn
	case StageTurn:
		return StageRiver
	case StageRiver:
		return StageShowdown
	default:
		return StageEnded
	}
}

// communityDue returns how many community cards must be revealed when
// entering the stage.
func communityDue(s Stage) int {
	switch s {
	case StageFlop:
		return 3
	case StageTurn, StageRiver:
		return 1
	default:
		return 0
	}
}

// ActionKind names a player-facing betting action.
type ActionKind string

const (
	ActionFold  ActionKind = "fold"
	ActionCheck ActionKind = "check"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
	ActionAllIn ActionKind = "all-in"
)

// IllegalActionError reports a locally rejected action. It carries enough
// context for the client to re-render a corrected action panel; round state
// is unchanged.
type IllegalActionError struct {
	Seat   int
	Stage  Stage
	Action ActionKind
	Reason string
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("illegal %s by seat %d in %s: %s", e.Action, e.Seat, e.Stage, e.Reason)
}

// CardRevealer resolves opaque on-ledger handles into plaintext cards. The
// round engine never sees a handle directly; it only asks for the cards due
// at each stage and, at showdown, each remaining seat's hole cards.
type CardRevealer interface {
	ResolveCommunity(ctx context.Context, gameRef string, revealCount int) ([]Card, error)
	ResolveHoleCards(ctx context.Context, gameRef string, seatIndex int) ([]Card, error)
}

// Winner is one seat's payout at hand completion.
type Winner struct {
	SeatIndex int
	Amount    int64
	HandRank  string
}

// Disclosure is one showdown participant's revealed cards and hand label.
type Disclosure struct {
	SeatIndex int
	Cards     []Card
	Label     string
}

// RoundEvents carries the engine's outbound notifications. Nil callbacks are
// skipped. Callbacks run on the goroutine that drove the transition and must
// not call back into the round.
type RoundEvents struct {
	TurnChanged   func(seat int, deadline time.Time, legal []ActionKind)
	StageAdvanced func(stage Stage, newCards []Card)
	HandComplete  func(winners []Winner, disclosures []Disclosure)
}

// RoundConfig holds everything needed to start one hand.
type RoundConfig struct {
	GameRef     string
	Players     []*Player // seat-ordered; len >= 2
	DealerIndex int
	SmallBlind  int64
	BigBlind    int64
	TurnTimeout time.Duration
	Revealer    CardRevealer
	Events      RoundEvents
	Log         slog.Logger
}

// Round owns the betting state for a single hand: stage, pots, bets,
// acted/all-in/folded flags, blind positions and the turn clock. Exactly one
// action is processed at a time; actions from any seat other than the acting
// seat are rejected outright.
type Round struct {
	log      slog.Logger
	gameRef  string
	revealer CardRevealer
	events   RoundEvents

	mu sync.Mutex

	players    []*Player
	stage      Stage
	potManager *PotManager

	communityCards []Card

	currentBet      int64
	minRaise        int64
	lastRaiseAmount int64

	dealer     int
	smallBlind int
	bigBlind   int

	bigBlindAmount int64

	actingSeat   int
	turnTimeout  time.Duration
	turnDeadline time.Time

	// revealing bars action processing while a stage-advancing reveal is in
	// flight; the turn clock is suspended for the duration.
	revealing bool

	lastWinners     []Winner
	lastDisclosures []Disclosure
}

// NewRound creates a hand, posts blinds and opens pre-flop action.
func NewRound(cfg RoundConfig) (*Round, error) {
	if len(cfg.Players) < 2 {
		return nil, fmt.Errorf("round requires at least 2 players, got %d", len(cfg.Players))
	}
	if cfg.Revealer == nil {
		return nil, fmt.Errorf("round requires a card revealer")
	}
	if cfg.DealerIndex < 0 || cfg.DealerIndex >= len(cfg.Players) {
		return nil, fmt.Errorf("dealer index %d out of range", cfg.DealerIndex)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	r := &Round{
		log:            log,
		gameRef:        cfg.GameRef,
		revealer:       cfg.Revealer,
		events:         cfg.Events,
		players:        cfg.Players,
		stage:          StagePreFlop,
		potManager:     NewPotManager(len(cfg.Players), log),
		minRaise:       cfg.BigBlind,
		bigBlindAmount: cfg.BigBlind,
		dealer:         cfg.DealerIndex,
		turnTimeout:    cfg.TurnTimeout,
	}

	n := len(r.players)
	r.smallBlind = (r.dealer + 1) % n
	r.bigBlind = (r.dealer + 2) % n
	// Heads-up: the dealer posts the small blind and acts first pre-flop.
	if n == 2 {
		r.smallBlind = r.dealer
		r.bigBlind = (r.dealer + 1) % n
	}

	r.postBlind(r.smallBlind, cfg.SmallBlind)
	r.postBlind(r.bigBlind, cfg.BigBlind)
	r.currentBet = cfg.BigBlind

	r.actingSeat = r.nextActingSeat(r.bigBlind)
	r.resetTurnClock()
	r.log.Debugf("round %s: new hand dealer=%d sb=%d bb=%d acting=%d",
		r.gameRef, r.dealer, r.smallBlind, r.bigBlind, r.actingSeat)
	return r, nil
}

// postBlind moves a forced bet from the seat's stack, going all-in for less
// when the stack cannot cover it.
func (r *Round) postBlind(seat int, amount int64) {
	p := r.players[seat]
	if amount > p.Chips {
		amount = p.Chips
		p.IsAllIn = true
	}
	p.Chips -= amount
	p.Bet += amount
	p.TotalBet += amount
	if p.Chips == 0 {
		p.IsAllIn = true
	}
}

// Fold folds the acting seat. If exactly one non-folded seat remains the
// hand settles immediately without any card reveal.
func (r *Round) Fold(ctx context.Context, seat int) error {
	return r.act(ctx, seat, ActionFold, 0)
}

// Check passes the action; legal only when the seat's bet matches the
// current bet.
func (r *Round) Check(ctx context.Context, seat int) error {
	return r.act(ctx, seat, ActionCheck, 0)
}

// Call matches the current bet, capped by the seat's stack (a partial call
// is an implicit all-in).
func (r *Round) Call(ctx context.Context, seat int) error {
	return r.act(ctx, seat, ActionCall, 0)
}

// Raise raises the current bet level to amount.
func (r *Round) Raise(ctx context.Context, seat int, amount int64) error {
	return r.act(ctx, seat, ActionRaise, amount)
}

// AllIn bets the seat's whole remaining stack.
func (r *Round) AllIn(ctx context.Context, seat int) error {
	return r.act(ctx, seat, ActionAllIn, 0)
}

// Timeout is the entry point for the engine-external turn scheduler. A
// timed-out seat checks when a check is legal and folds otherwise.
func (r *Round) Timeout(ctx context.Context, seat int) error {
	r.mu.Lock()
	if r.revealing || r.stage >= StageShowdown || seat != r.actingSeat {
		// The clock is suspended during reveals and a stale timer must not
		// fold a seat that already acted.
		r.mu.Unlock()
		return nil
	}
	checkLegal := r.players[seat].Bet == r.currentBet
	r.mu.Unlock()

	if checkLegal {
		r.log.Debugf("round %s: seat %d timed out, auto-check", r.gameRef, seat)
		return r.Check(ctx, seat)
	}
	r.log.Debugf("round %s: seat %d timed out, auto-fold", r.gameRef, seat)
	return r.Fold(ctx, seat)
}

// act validates and applies one betting action, then drives any resulting
// round closure, stage advance or settlement.
func (r *Round) act(ctx context.Context, seat int, kind ActionKind, amount int64) error {
	r.mu.Lock()

	if err := r.validateTurn(seat, kind); err != nil {
		r.mu.Unlock()
		return err
	}

	p := r.players[seat]
	toCall := r.currentBet - p.Bet

	switch kind {
	case ActionFold:
		p.HasFolded = true
		p.HasActed = true

	case ActionCheck:
		if toCall != 0 {
			r.mu.Unlock()
			return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind,
				Reason: fmt.Sprintf("must call %d to continue", toCall)}
		}
		p.HasActed = true

	case ActionCall:
		pay := toCall
		if pay >= p.Chips {
			pay = p.Chips
			p.IsAllIn = true
		}
		p.Chips -= pay
		p.Bet += pay
		p.TotalBet += pay
		p.HasActed = true

	case ActionRaise:
		if err := r.applyRaise(p, amount); err != nil {
			r.mu.Unlock()
			return err
		}

	case ActionAllIn:
		all := p.Bet + p.Chips
		if all > r.currentBet {
			if err := r.applyRaise(p, all); err != nil {
				r.mu.Unlock()
				return err
			}
		} else {
			// Capped call; contributes a side-pot boundary.
			p.Bet = all
			p.TotalBet += p.Chips
			p.Chips = 0
			p.IsAllIn = true
			p.HasActed = true
		}
	}

	p.LastAction = time.Now()
	r.log.Debugf("round %s: seat %d %s (bet=%d chips=%d currentBet=%d)",
		r.gameRef, seat, kind, p.Bet, p.Chips, r.currentBet)

	return r.afterAction(ctx)
}

// applyRaise raises the bet level to amount, which must be at least
// currentBet + minRaise unless the raiser is all-in for less. A short all-in
// raise does not reopen action: seats that already acted at the previous full
// bet may only call or fold, so a raise from a seat with HasActed still set
// is rejected. Only a full raise clears HasActed for the other live seats.
func (r *Round) applyRaise(p *Player, amount int64) error {
	if amount <= r.currentBet {
		return &IllegalActionError{Seat: p.SeatIndex, Stage: r.stage, Action: ActionRaise,
			Reason: fmt.Sprintf("raise to %d does not exceed current bet %d", amount, r.currentBet)}
	}
	if p.HasActed {
		return &IllegalActionError{Seat: p.SeatIndex, Stage: r.stage, Action: ActionRaise,
			Reason: "no full raise since seat last acted, call or fold only"}
	}
	need := amount - p.Bet
	if need > p.Chips {
		return &IllegalActionError{Seat: p.SeatIndex, Stage: r.stage, Action: ActionRaise,
			Reason: fmt.Sprintf("raise to %d exceeds stack of %d behind", amount, p.Chips)}
	}

	allIn := need == p.Chips
	fullRaise := amount >= r.currentBet+r.minRaise
	if !fullRaise && !allIn {
		return &IllegalActionError{Seat: p.SeatIndex, Stage: r.stage, Action: ActionRaise,
			Reason: fmt.Sprintf("minimum raise is to %d", r.currentBet+r.minRaise)}
	}

	delta := amount - r.currentBet
	p.Chips -= need
	p.Bet = amount
	p.TotalBet += need
	p.HasActed = true
	if allIn {
		p.IsAllIn = true
	}

	r.currentBet = amount
	if fullRaise {
		r.lastRaiseAmount = delta
		r.minRaise = delta
		// A full raise reopens action for every other live seat.
		for _, other := range r.players {
			if other != p && other.CanAct() {
				other.HasActed = false
			}
		}
	}
	return nil
}

// validateTurn enforces the single-actor rule and the revealing sub-state.
func (r *Round) validateTurn(seat int, kind ActionKind) error {
	if seat < 0 || seat >= len(r.players) {
		return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind, Reason: "no such seat"}
	}
	if r.stage >= StageShowdown {
		return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind, Reason: "hand is not accepting actions"}
	}
	if r.revealing {
		return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind, Reason: "community reveal in progress"}
	}
	if seat != r.actingSeat {
		return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind, Reason: "not your turn to act"}
	}
	p := r.players[seat]
	if p.HasFolded {
		return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind, Reason: "seat has folded"}
	}
	if p.IsAllIn {
		return &IllegalActionError{Seat: seat, Stage: r.stage, Action: kind, Reason: "seat is all-in"}
	}
	return nil
}

// afterAction decides what the action leads to: an uncontested win, a closed
// betting round, or simply the next seat's turn. Called with the lock held;
// releases it.
func (r *Round) afterAction(ctx context.Context) error {
	if r.aliveCount() == 1 {
		return r.settleUncontested()
	}

	if r.bettingRoundClosed() {
		return r.closeBettingRound(ctx)
	}

	r.actingSeat = r.nextActingSeat(r.actingSeat)
	r.resetTurnClock()
	seat, deadline, legal := r.actingSeat, r.turnDeadline, r.legalActions(r.actingSeat)
	r.mu.Unlock()

	if r.events.TurnChanged != nil {
		r.events.TurnChanged(seat, deadline, legal)
	}
	return nil
}

// bettingRoundClosed reports whether every live seat has acted since the
// last raise and all live bets match the current bet.
func (r *Round) bettingRoundClosed() bool {
	for _, p := range r.players {
		if !p.CanAct() {
			continue
		}
		if !p.HasActed || p.Bet != r.currentBet {
			return false
		}
	}
	return true
}

// closeBettingRound sweeps bets into the pot, advances the stage, reveals
// the newly due community cards and reopens action. Called with the lock
// held; releases it.
func (r *Round) closeBettingRound(ctx context.Context) error {
	r.potManager.ReturnUncalledBet(r.players)
	for _, p := range r.players {
		p.Bet = 0
		p.HasActed = false
	}
	r.currentBet = 0
	r.lastRaiseAmount = 0
	r.minRaise = r.bigBlindAmount
	r.potManager.BuildPotsFromTotals(r.players)

	next := r.stage.Next()
	if next == StageShowdown {
		return r.runShowdown(ctx)
	}

	due := communityDue(next)
	r.log.Debugf("round %s: %s closed, revealing %d community cards for %s",
		r.gameRef, r.stage, due, next)

	// Bar actions and suspend the clock while the reveal round-trip is in
	// flight. The lock is released so reads (snapshots) stay live.
	r.revealing = true
	r.turnDeadline = time.Time{}
	already := len(r.communityCards)
	r.mu.Unlock()

	cards, err := r.revealer.ResolveCommunity(ctx, r.gameRef, already+due)

	r.mu.Lock()
	r.revealing = false
	if r.stage >= StageShowdown {
		// The hand resolved while the reveal was in flight (e.g. abort);
		// discard the stale response.
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		// The stage must not advance without its cards; surface to the
		// controller for retry or hand abort.
		r.resetTurnClock()
		r.mu.Unlock()
		return fmt.Errorf("reveal %s cards: %w", next, err)
	}
	if len(cards) < already+due {
		r.resetTurnClock()
		r.mu.Unlock()
		return fmt.Errorf("reveal %s cards: got %d of %d", next, len(cards), already+due)
	}

	newCards := cards[already : already+due]
	r.communityCards = append(r.communityCards, newCards...)
	r.stage = next

	// With at most one seat still able to act, betting is moot: walk the
	// remaining streets without reopening action.
	if r.actionableCount() <= 1 {
		r.mu.Unlock()
		if r.events.StageAdvanced != nil {
			r.events.StageAdvanced(next, newCards)
		}
		r.mu.Lock()
		return r.closeBettingRound(ctx)
	}

	r.actingSeat = r.nextActingSeat(r.dealer)
	r.resetTurnClock()
	seat, deadline, legal := r.actingSeat, r.turnDeadline, r.legalActions(r.actingSeat)
	r.mu.Unlock()

	if r.events.StageAdvanced != nil {
		r.events.StageAdvanced(next, newCards)
	}
	if r.events.TurnChanged != nil {
		r.events.TurnChanged(seat, deadline, legal)
	}
	return nil
}

// settleUncontested pays the single remaining seat without evaluation or any
// card reveal. Called with the lock held; releases it.
func (r *Round) settleUncontested() error {
	r.stage = StageShowdown
	r.potManager.ReturnUncalledBet(r.players)
	for _, p := range r.players {
		p.Bet = 0
	}
	r.potManager.BuildPotsFromTotals(r.players)

	payouts := r.potManager.Distribute(r.players, r.dealer)
	winners := make([]Winner, 0, 1)
	for seat, amount := range payouts {
		winners = append(winners, Winner{SeatIndex: seat, Amount: amount})
	}

	r.stage = StageEnded
	r.turnDeadline = time.Time{}
	r.lastWinners = winners
	r.lastDisclosures = nil
	r.log.Infof("round %s: uncontested win, pot %d", r.gameRef, r.potManager.TotalPot())
	r.mu.Unlock()

	if r.events.HandComplete != nil {
		r.events.HandComplete(winners, nil)
	}
	return nil
}

// runShowdown resolves every live seat's hole cards, evaluates hands, and
// splits each pot among its eligible winners. Called with the lock held;
// releases it.
func (r *Round) runShowdown(ctx context.Context) error {
	r.stage = StageShowdown
	r.turnDeadline = time.Time{}

	if len(r.communityCards) < 3 {
		// The state machine must never reach showdown without a board; this
		// is a programming-contract violation, not a runtime error.
		panic(fmt.Sprintf("round %s: showdown with %d community cards", r.gameRef, len(r.communityCards)))
	}

	type pending struct {
		seat int
	}
	var need []pending
	for seat, p := range r.players {
		if !p.HasFolded && len(p.HoleCards) != 2 {
			need = append(need, pending{seat: seat})
		}
	}

	// Hole-card resolution is the only blocking part; drop the lock for it.
	r.revealing = true
	r.mu.Unlock()

	resolved := make(map[int][]Card, len(need))
	var resolveErr error
	for _, pn := range need {
		cards, err := r.revealer.ResolveHoleCards(ctx, r.gameRef, pn.seat)
		if err != nil {
			resolveErr = fmt.Errorf("resolve hole cards for seat %d: %w", pn.seat, err)
			break
		}
		resolved[pn.seat] = cards
	}

	r.mu.Lock()
	r.revealing = false
	if r.stage == StageEnded {
		// Stale response after the hand already resolved.
		r.mu.Unlock()
		return nil
	}
	if resolveErr != nil {
		r.mu.Unlock()
		return resolveErr
	}
	for seat, cards := range resolved {
		r.players[seat].HoleCards = cards
	}

	disclosures := make([]Disclosure, 0, len(r.players))
	for seat, p := range r.players {
		if p.HasFolded {
			continue
		}
		hv, err := EvaluateHand(p.HoleCards, r.communityCards)
		if err != nil {
			panic(fmt.Sprintf("round %s: seat %d unevaluatable at showdown: %v", r.gameRef, seat, err))
		}
		p.HandValue = &hv
		disclosures = append(disclosures, Disclosure{
			SeatIndex: seat,
			Cards:     append([]Card{}, p.HoleCards...),
			Label:     hv.HandDescription,
		})
	}

	payouts := r.potManager.Distribute(r.players, r.dealer)
	winners := make([]Winner, 0, len(payouts))
	for seat, amount := range payouts {
		w := Winner{SeatIndex: seat, Amount: amount}
		if hv := r.players[seat].HandValue; hv != nil {
			w.HandRank = hv.HandDescription
		}
		winners = append(winners, w)
	}
	sortWinnersBySeat(winners)

	r.stage = StageEnded
	r.lastWinners = winners
	r.lastDisclosures = disclosures
	r.log.Infof("round %s: showdown complete, pot %d, %d winner(s)", r.gameRef, r.potManager.TotalPot(), len(winners))
	r.mu.Unlock()

	if r.events.HandComplete != nil {
		r.events.HandComplete(winners, disclosures)
	}
	return nil
}

func sortWinnersBySeat(winners []Winner) {
	for i := 1; i < len(winners); i++ {
		for j := i; j > 0 && winners[j].SeatIndex < winners[j-1].SeatIndex; j-- {
			winners[j], winners[j-1] = winners[j-1], winners[j]
		}
	}
}

// Abort ends the hand without settlement, e.g. after reveal retries are
// exhausted and the controller opts to refund. Swept chips are left for the
// controller's refund policy.
func (r *Round) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.stage
	r.stage = StageEnded
	r.turnDeadline = time.Time{}
	r.log.Warnf("round %s: aborted at %s", r.gameRef, at)
}

// aliveCount counts non-folded seats.
func (r *Round) aliveCount() int {
	n := 0
	for _, p := range r.players {
		if !p.HasFolded {
			n++
		}
	}
	return n
}

// actionableCount counts seats that can still take betting actions.
func (r *Round) actionableCount() int {
	n := 0
	for _, p := range r.players {
		if p.CanAct() {
			n++
		}
	}
	return n
}

// nextActingSeat returns the first seat after from (going left) that can
// still act.
func (r *Round) nextActingSeat(from int) int {
	n := len(r.players)
	for i := 1; i <= n; i++ {
		seat := (from + i) % n
		if r.players[seat].CanAct() {
			return seat
		}
	}
	return from
}

func (r *Round) resetTurnClock() {
	if r.turnTimeout > 0 {
		r.turnDeadline = time.Now().Add(r.turnTimeout)
	}
}

// legalActions lists what the seat may do right now.
func (r *Round) legalActions(seat int) []ActionKind {
	p := r.players[seat]
	if !p.CanAct() || seat != r.actingSeat {
		return nil
	}
	legal := []ActionKind{ActionFold}
	// An all-in above the current bet is a raise, so a seat whose action was
	// not reopened can only shove when the shove is a capped call.
	if !p.HasActed || p.Bet+p.Chips <= r.currentBet {
		legal = append(legal, ActionAllIn)
	}
	if p.Bet == r.currentBet {
		legal = append(legal, ActionCheck)
	} else {
		legal = append(legal, ActionCall)
	}
	if !p.HasActed && p.Bet+p.Chips >= r.currentBet+r.minRaise {
		legal = append(legal, ActionRaise)
	}
	return legal
}
