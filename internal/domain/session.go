package domain

// DefaultChainID is the chain a fresh session points at (Monad testnet).
const DefaultChainID int64 = 10143

// LedgerSession is the whole persisted store for one user: the append-only
// bet list (newest first), the per-market aggregate map, the selected chain,
// and the optimistic balance used for instant feedback ahead of a confirmed
// on-chain read. It is serialized as a single record and rewritten whole
// after every mutation; it must never be mutated outside the ledger's own
// operations.
type LedgerSession struct {
	UserKey           string                 `json:"user_key"`
	Bets              []Bet                  `json:"bets"`
	Markets           map[int64]*MarketState `json:"markets"`
	Intents           []BetIntent            `json:"intents,omitempty"`
	SelectedChain     int64                  `json:"selected_chain"`
	OptimisticBalance *string                `json:"optimistic_balance,omitempty"`
}

// NewLedgerSession returns an empty session for the given user key with the
// default chain selected.
func NewLedgerSession(userKey string) *LedgerSession {
	return &LedgerSession{
		UserKey:       userKey,
		Bets:          []Bet{},
		Markets:       make(map[int64]*MarketState),
		SelectedChain: DefaultChainID,
	}
}
