package domain

// UserStats aggregates one user's betting record across the ledger.
type UserStats struct {
	UserKey      string  `json:"user_key"`
	TotalBets    int     `json:"total_bets"`
	ActiveBets   int     `json:"active_bets"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	TotalWagered string  `json:"total_wagered"` // decimal string, native units
	WinRate      float64 `json:"win_rate"`      // percent of resolved bets won
}
