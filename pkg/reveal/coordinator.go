package reveal

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/decred/slog"

	"github.com/sealdeck/sealdeck/pkg/poker"
)

// Credential signs reveal requests and identifies the requesting party.
type Credential interface {
	PublicID() string
	Sign(msg []byte) ([]byte, error)
}

// LedgerReader fetches the opaque game account blob for a round. The
// coordinator only ever reads ledger state.
type LedgerReader interface {
	ReadGameAccount(ctx context.Context, gameRef string) ([]byte, error)
}

// RevealRequest is one signed batch of handles for the decryption service.
type RevealRequest struct {
	Handles     []string `json:"handles"` // canonical decimal
	RequesterID string   `json:"requester"`
	Signature   []byte   `json:"signature"`
}

// RevealResult carries plaintext card codes aligned positionally with the
// request's handles.
type RevealResult struct {
	Plaintexts []string `json:"plaintexts"`
}

// DecryptClient is the attested decryption service transport. Beyond the
// retry contract the coordinator treats it as a black box.
type DecryptClient interface {
	Decrypt(ctx context.Context, req RevealRequest) (RevealResult, error)
}

// Config holds the coordinator's collaborators.
type Config struct {
	Ledger    LedgerReader
	Decrypter DecryptClient
	// Backend signs community reveals. Hole cards are never signed with it.
	Backend Credential
	Retry   RetryPolicy
	Log     slog.Logger
}

// Coordinator bridges opaque on-ledger handles and the plaintext cards the
// engine needs, without ever exposing one player's hole cards to another.
// Plaintexts are cached per hand and discarded at hand end.
type Coordinator struct {
	log       slog.Logger
	ledger    LedgerReader
	decrypter DecryptClient
	backend   Credential
	retry     RetryPolicy

	mu sync.Mutex
	// cache is keyed by gameRef then canonical handle string; cleared by
	// EndHand so plaintexts never leak across hands.
	cache map[string]map[string]poker.Card
	// seatCreds holds each seat's own signing credential, registered when
	// the player joins the hand. Hole-card decryption always signs with the
	// seat's credential, never the backend's: that is the access-control
	// boundary between players.
	seatCreds map[string]map[int]Credential
}

// NewCoordinator creates a reveal coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("reveal: ledger reader is required")
	}
	if cfg.Decrypter == nil {
		return nil, fmt.Errorf("reveal: decrypt client is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("reveal: backend credential is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Coordinator{
		log:       log,
		ledger:    cfg.Ledger,
		decrypter: cfg.Decrypter,
		backend:   cfg.Backend,
		retry:     retry,
		cache:     make(map[string]map[string]poker.Card),
		seatCreds: make(map[string]map[int]Credential),
	}, nil
}

// RegisterSeatCredential records a seat's signing credential for the hand.
func (c *Coordinator) RegisterSeatCredential(gameRef string, seat int, cred Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seatCreds[gameRef] == nil {
		c.seatCreds[gameRef] = make(map[int]Credential)
	}
	c.seatCreds[gameRef][seat] = cred
}

// EndHand discards the hand's cached plaintexts and seat credentials.
func (c *Coordinator) EndHand(gameRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, gameRef)
	delete(c.seatCreds, gameRef)
}

// ResolveCommunity reads the first revealCount community handles from ledger
// state and decrypts them with the backend credential.
func (c *Coordinator) ResolveCommunity(ctx context.Context, gameRef string, revealCount int) ([]poker.Card, error) {
	if revealCount < 0 || revealCount > CommunitySlots {
		return nil, fmt.Errorf("reveal: community count %d out of range", revealCount)
	}

	acct, err := c.readAccount(ctx, gameRef)
	if err != nil {
		return nil, err
	}

	handles := make([]CardHandle, revealCount)
	copy(handles, acct.CommunityHandles[:revealCount])

	return c.decryptHandles(ctx, gameRef, handles, c.backend)
}

// ResolveHoleCards resolves the two hole cards dealt to seatIndex, signing
// with the seat's own registered credential.
func (c *Coordinator) ResolveHoleCards(ctx context.Context, gameRef string, seatIndex int) ([]poker.Card, error) {
	c.mu.Lock()
	cred := c.seatCreds[gameRef][seatIndex]
	c.mu.Unlock()
	if cred == nil {
		return nil, fmt.Errorf("%w: no credential registered for seat %d", ErrAccessDenied, seatIndex)
	}

	acct, err := c.readAccount(ctx, gameRef)
	if err != nil {
		return nil, err
	}

	pairIdx, err := acct.PairIndexForSeat(seatIndex)
	if err != nil {
		return nil, err
	}

	handles := []CardHandle{
		acct.HoleHandles[2*pairIdx],
		acct.HoleHandles[2*pairIdx+1],
	}
	return c.decryptHandles(ctx, gameRef, handles, cred)
}

// readAccount fetches and parses the game account, requiring the cards
// processed readiness flag.
func (c *Coordinator) readAccount(ctx context.Context, gameRef string) (*GameAccount, error) {
	data, err := c.ledger.ReadGameAccount(ctx, gameRef)
	if err != nil {
		return nil, fmt.Errorf("read game account %s: %w", gameRef, err)
	}
	acct, err := ParseGameAccount(data)
	if err != nil {
		return nil, err
	}
	if !acct.CardsProcessed {
		return nil, fmt.Errorf("%w: game %s cards not processed", ErrNotReady, gameRef)
	}
	return acct, nil
}

// decryptHandles resolves a batch of handles to cards, serving cache hits
// and issuing one signed reveal request for the misses, retried per policy.
func (c *Coordinator) decryptHandles(ctx context.Context, gameRef string, handles []CardHandle, cred Credential) ([]poker.Card, error) {
	keys := make([]string, len(handles))
	for i, h := range handles {
		if h.IsZero() {
			return nil, fmt.Errorf("%w: handle %d not yet dealt", ErrNotReady, i)
		}
		keys[i] = h.String()
	}

	out := make([]poker.Card, len(handles))
	var missing []string
	missingPos := make(map[string][]int)

	c.mu.Lock()
	handCache := c.cache[gameRef]
	for i, key := range keys {
		if card, ok := handCache[key]; ok {
			out[i] = card
			continue
		}
		if len(missingPos[key]) == 0 {
			missing = append(missing, key)
		}
		missingPos[key] = append(missingPos[key], i)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	sig, err := cred.Sign([]byte(strings.Join(missing, ",")))
	if err != nil {
		return nil, fmt.Errorf("sign reveal request: %w", err)
	}
	req := RevealRequest{
		Handles:     missing,
		RequesterID: cred.PublicID(),
		Signature:   sig,
	}

	var result RevealResult
	err = resolveWithRetry(ctx, c.retry, func(ctx context.Context) error {
		var opErr error
		result, opErr = c.decrypter.Decrypt(ctx, req)
		return opErr
	})
	if err != nil {
		c.log.Errorf("reveal: decrypt %d handle(s) for game %s failed: %v", len(missing), gameRef, err)
		return nil, err
	}
	if len(result.Plaintexts) != len(missing) {
		return nil, fmt.Errorf("reveal: got %d plaintexts for %d handles", len(result.Plaintexts), len(missing))
	}

	c.mu.Lock()
	if c.cache[gameRef] == nil {
		c.cache[gameRef] = make(map[string]poker.Card)
	}
	for i, key := range missing {
		card, decodeErr := decodeCardCode(result.Plaintexts[i])
		if decodeErr != nil {
			c.mu.Unlock()
			return nil, decodeErr
		}
		c.cache[gameRef][key] = card
		for _, pos := range missingPos[key] {
			out[pos] = card
		}
	}
	c.mu.Unlock()

	c.log.Debugf("reveal: resolved %d handle(s) for game %s", len(missing), gameRef)
	return out, nil
}

// decodeCardCode maps a raw plaintext integer to its card. The encrypted
// value space is wider than 52 and the ledger program adds a masking offset
// for anti-collusion; the mod-52 step undoes exactly that transform and no
// more.
func decodeCardCode(plaintext string) (poker.Card, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(plaintext), 10)
	if !ok {
		return poker.Card{}, fmt.Errorf("reveal: plaintext %q is not a decimal integer", plaintext)
	}
	idx := new(big.Int).Mod(v, big.NewInt(52)).Int64()
	return poker.CardFromIndex(int(idx)), nil
}
