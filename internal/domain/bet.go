package domain

import "time"

// Side is the outcome a bet is staked on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is one of the two allowed values.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// BetStatus tracks the bet lifecycle.
type BetStatus string

const (
	// BetStatusPending means the bet transaction was submitted but the
	// caller has not yet observed chain confirmation.
	BetStatusPending BetStatus = "pending"
	// BetStatusActive means the bet is confirmed on-chain and the market is
	// unresolved.
	BetStatusActive BetStatus = "active"
	// BetStatusWon means the market resolved in the bet's favor and the
	// reward has not been claimed yet.
	BetStatusWon BetStatus = "won"
	// BetStatusLost is terminal: the market resolved against the bet.
	BetStatusLost BetStatus = "lost"
	// BetStatusClaimed is terminal: the reward was withdrawn.
	BetStatusClaimed BetStatus = "claimed"
)

// Terminal reports whether the status admits no further transitions.
func (s BetStatus) Terminal() bool {
	return s == BetStatusLost || s == BetStatusClaimed
}

// SocialSnapshot is the social content a market referenced, captured at bet
// time so the display survives upstream edits.
type SocialSnapshot struct {
	Author  string `json:"author"`
	Handle  string `json:"handle"`
	Content string `json:"content"`
}

// Bet is one user wager. Bets are append-only: once recorded they are never
// deleted, and only their Status changes through explicit transitions.
type Bet struct {
	ID                 string          `json:"id"`
	MarketID           int64           `json:"market_id"`
	BlockchainMarketID *int64          `json:"blockchain_market_id,omitempty"`
	ChainBetID         string          `json:"chain_bet_id,omitempty"`
	TxHash             string          `json:"tx_hash,omitempty"`
	Side               Side            `json:"side"`
	Amount             string          `json:"amount"` // decimal string, native currency units
	Status             BetStatus       `json:"status"`
	Timestamp          time.Time       `json:"timestamp"`
	Chain              int64           `json:"chain"`
	ChainName          string          `json:"chain_name"`
	MarketQuestion     string          `json:"market_question"`
	PotentialWinnings  string          `json:"potential_winnings,omitempty"`
	Social             *SocialSnapshot `json:"social,omitempty"`
}

// BetIntent records that a place-bet call is in flight against a market whose
// on-chain creation already succeeded. Intents are resolved (removed) once the
// second call's outcome is known; an intent left open marks the
// market-created-but-no-bet inconsistency window.
type BetIntent struct {
	ID        string    `json:"id"`
	MarketID  int64     `json:"market_id"`
	Side      Side      `json:"side"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
