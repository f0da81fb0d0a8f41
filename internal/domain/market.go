package domain

// MarketState is the locally tracked aggregate for one market. Pool totals are
// running sums of confirmed local bet amounts; they converge with the on-chain
// pools through reconciliation but are updated optimistically first.
type MarketState struct {
	LocalMarketID      int64    `json:"local_market_id"`
	BlockchainMarketID *int64   `json:"blockchain_market_id,omitempty"`
	TotalYesBets       string   `json:"total_yes_bets"`
	TotalNoBets        string   `json:"total_no_bets"`
	Created            bool     `json:"created"`
	BetIDs             []string `json:"bet_ids,omitempty"`
}

// MarketStateUpdate is a partial update merged into a MarketState. Nil fields
// leave the existing value untouched.
type MarketStateUpdate struct {
	BlockchainMarketID *int64
	TotalYesBets       *string
	TotalNoBets        *string
	Created            *bool
	AppendBetID        string
}

// PoolPercents is the integer percentage split of a market's two pools.
// Yes and No always sum to 100; an empty market is reported as an even split.
type PoolPercents struct {
	Yes int `json:"yes"`
	No  int `json:"no"`
}

// ChainMarket is the on-chain view of a market as returned by the contract.
type ChainMarket struct {
	ID            int64
	Question      string
	TotalYesStake string // decimal string, native units
	TotalNoStake  string
	Resolved      bool
	Outcome       Side // meaningful only when Resolved
	Exists        bool
}

// ChainBet is the on-chain view of a single bet.
type ChainBet struct {
	ID       int64
	MarketID int64
	Bettor   string
	Side     Side
	Amount   string
	Claimed  bool
}
