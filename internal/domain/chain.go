package domain

import "context"

// CreateMarketResult is the decoded outcome of a market-creation transaction.
type CreateMarketResult struct {
	TxHash   string
	MarketID int64
}

// PlaceBetResult is the decoded outcome of a place-bet transaction.
type PlaceBetResult struct {
	TxHash string
	BetID  int64
}

// ChainClient mediates all reads and writes against the prediction-market
// contract through a wallet-backed RPC connection. Every call may fail with a
// classified chain error (user-rejected, insufficient-funds, wrong-network,
// reverted) or a generic transport error.
type ChainClient interface {
	// GetBalance returns the native-currency balance of address as a decimal
	// string in native units.
	GetBalance(ctx context.Context, address string) (string, error)

	// SwitchNetwork points the client at the RPC endpoint configured for
	// chainID and verifies the node agrees on the chain id.
	SwitchNetwork(ctx context.Context, chainID int64) error

	// ChainID reports the currently selected chain.
	ChainID() int64

	CreateMarket(ctx context.Context, question string, duration int64) (CreateMarketResult, error)
	PlaceBet(ctx context.Context, marketID int64, side Side, amount string) (PlaceBetResult, error)
	ResolveMarket(ctx context.Context, marketID int64, outcome Side) (string, error)
	ClaimWinnings(ctx context.Context, betID int64) (string, error)

	GetMarket(ctx context.Context, marketID int64) (ChainMarket, error)
	// GetMarketOdds reads a market's pools and returns the percentage split.
	// A market with empty pools reports an even split.
	GetMarketOdds(ctx context.Context, marketID int64) (PoolPercents, error)
	GetBet(ctx context.Context, betID int64) (ChainBet, error)
	CalculateWinnings(ctx context.Context, betID int64) (string, error)
	GetUserBets(ctx context.Context, address string) ([]int64, error)
}
