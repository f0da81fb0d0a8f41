package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/money"
)

// ClientConfig holds the wallet key and chain registry for the Client.
type ClientConfig struct {
	// PrivateKey is the hex-encoded wallet key used to sign transactions.
	PrivateKey string
	// Registry is the supported-chain table.
	Registry *Registry
	// ChainID selects the initial chain; zero means the registry default.
	ChainID int64
}

// contractMarket mirrors the getMarket tuple layout.
type contractMarket struct {
	Id            *big.Int
	Question      string
	TotalYesStake *big.Int
	TotalNoStake  *big.Int
	EndTime       *big.Int
	Resolved      bool
	Outcome       bool
	Creator       common.Address
	Exists        bool
}

// contractBet mirrors the getBet tuple layout.
type contractBet struct {
	Id       *big.Int
	MarketId *big.Int
	Bettor   common.Address
	Side     bool
	Amount   *big.Int
	Claimed  bool
}

// Client implements domain.ChainClient over an RPC connection and the fixed
// PredictionMarket ABI. SwitchNetwork re-dials the endpoint registered for
// the requested chain; all other calls use whichever connection is current.
type Client struct {
	registry *Registry
	key      *ecdsa.PrivateKey
	from     common.Address
	abi      abi.ABI
	logger   *slog.Logger

	mu       sync.Mutex
	chainID  int64
	eth      *ethclient.Client
	contract *bind.BoundContract
}

// New creates a Client, dials the initial chain's RPC endpoint, and verifies
// the node reports the expected chain id.
func New(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(predictionMarketABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}

	c := &Client{
		registry: cfg.Registry,
		key:      key,
		from:     ethcrypto.PubkeyToAddress(key.PublicKey),
		abi:      parsed,
		logger:   logger.With(slog.String("component", "chain")),
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = cfg.Registry.DefaultChainID()
	}
	if err := c.SwitchNetwork(ctx, chainID); err != nil {
		return nil, err
	}
	return c, nil
}

// From returns the wallet address transactions are signed with.
func (c *Client) From() string {
	return c.from.Hex()
}

// ChainID reports the currently selected chain.
func (c *Client) ChainID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainID
}

// SwitchNetwork dials the RPC endpoint registered for chainID and verifies
// the node agrees on the chain id before swapping the live connection.
func (c *Client) SwitchNetwork(ctx context.Context, chainID int64) error {
	ep, ok := c.registry.Endpoint(chainID)
	if !ok {
		return fmt.Errorf("chain: switch to %d: %w", chainID, domain.ErrWrongNetwork)
	}

	eth, err := ethclient.DialContext(ctx, ep.RPCURL)
	if err != nil {
		return fmt.Errorf("chain: dial %s: %w", ep.RPCURL, err)
	}

	reported, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return fmt.Errorf("chain: query chain id: %w", err)
	}
	if reported.Int64() != chainID {
		eth.Close()
		return fmt.Errorf("chain: endpoint %s reports chain %d, want %d: %w",
			ep.RPCURL, reported.Int64(), chainID, domain.ErrWrongNetwork)
	}

	addr := common.HexToAddress(ep.ContractAddress)
	contract := bind.NewBoundContract(addr, c.abi, eth, eth, eth)

	c.mu.Lock()
	if c.eth != nil {
		c.eth.Close()
	}
	c.chainID = chainID
	c.eth = eth
	c.contract = contract
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "network selected",
		slog.Int64("chain_id", chainID),
		slog.String("name", ep.Name),
		slog.String("contract", ep.ContractAddress),
	)
	return nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

func (c *Client) conn() (*ethclient.Client, *bind.BoundContract, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eth, c.contract, c.chainID
}

// GetBalance returns the native-currency balance of address as a decimal
// string in native units.
func (c *Client) GetBalance(ctx context.Context, address string) (string, error) {
	eth, _, _ := c.conn()
	wei, err := eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return "", fmt.Errorf("chain: balance of %s: %w", address, err)
	}
	return money.Format(money.FromWei(wei)), nil
}

// transactor builds signing options for the current chain.
func (c *Client) transactor(ctx context.Context, chainID int64, value *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}
	auth.Context = ctx
	auth.Value = value
	return auth, nil
}

// waitMined blocks until the transaction is included and checks the receipt
// status.
func (c *Client) waitMined(ctx context.Context, eth *ethclient.Client, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, eth, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("chain: tx %s: %w", tx.Hash().Hex(), domain.ErrReverted)
	}
	return receipt, nil
}

// eventTopicID extracts the first indexed argument of the named event from
// the receipt logs. Logs that do not match the event are skipped.
func (c *Client) eventTopicID(receipt *types.Receipt, event string) (int64, bool) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return 0, false
	}
	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 2 || lg.Topics[0] != ev.ID {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Int64(), true
	}
	return 0, false
}

// CreateMarket creates a market on-chain and decodes the assigned market id
// from the MarketCreated event.
func (c *Client) CreateMarket(ctx context.Context, question string, duration int64) (domain.CreateMarketResult, error) {
	eth, contract, chainID := c.conn()

	auth, err := c.transactor(ctx, chainID, nil)
	if err != nil {
		return domain.CreateMarketResult{}, err
	}

	tx, err := contract.Transact(auth, "createMarket", question, big.NewInt(duration))
	if err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("chain: create market: %w", err)
	}

	receipt, err := c.waitMined(ctx, eth, tx)
	if err != nil {
		return domain.CreateMarketResult{}, err
	}

	marketID, ok := c.eventTopicID(receipt, "MarketCreated")
	if !ok {
		return domain.CreateMarketResult{}, fmt.Errorf("chain: tx %s: MarketCreated event missing", tx.Hash().Hex())
	}

	return domain.CreateMarketResult{
		TxHash:   receipt.TxHash.Hex(),
		MarketID: marketID,
	}, nil
}

// PlaceBet stakes amount on one side of a market and decodes the assigned
// bet id from the BetPlaced event.
func (c *Client) PlaceBet(ctx context.Context, marketID int64, side domain.Side, amount string) (domain.PlaceBetResult, error) {
	if !side.Valid() {
		return domain.PlaceBetResult{}, fmt.Errorf("chain: place bet: %w", domain.ErrInvalidSide)
	}

	wei, err := money.ToWei(amount)
	if err != nil {
		return domain.PlaceBetResult{}, err
	}

	eth, contract, chainID := c.conn()

	auth, err := c.transactor(ctx, chainID, wei)
	if err != nil {
		return domain.PlaceBetResult{}, err
	}

	tx, err := contract.Transact(auth, "placeBet", big.NewInt(marketID), side == domain.SideYes)
	if err != nil {
		return domain.PlaceBetResult{}, fmt.Errorf("chain: place bet on market %d: %w", marketID, err)
	}

	receipt, err := c.waitMined(ctx, eth, tx)
	if err != nil {
		return domain.PlaceBetResult{}, err
	}

	betID, ok := c.eventTopicID(receipt, "BetPlaced")
	if !ok {
		return domain.PlaceBetResult{}, fmt.Errorf("chain: tx %s: BetPlaced event missing", tx.Hash().Hex())
	}

	return domain.PlaceBetResult{
		TxHash: receipt.TxHash.Hex(),
		BetID:  betID,
	}, nil
}

// ResolveMarket settles a market with the given outcome. Only the contract
// owner may call this successfully.
func (c *Client) ResolveMarket(ctx context.Context, marketID int64, outcome domain.Side) (string, error) {
	if !outcome.Valid() {
		return "", fmt.Errorf("chain: resolve market: %w", domain.ErrInvalidSide)
	}

	eth, contract, chainID := c.conn()

	auth, err := c.transactor(ctx, chainID, nil)
	if err != nil {
		return "", err
	}

	tx, err := contract.Transact(auth, "resolveMarket", big.NewInt(marketID), outcome == domain.SideYes)
	if err != nil {
		return "", fmt.Errorf("chain: resolve market %d: %w", marketID, err)
	}

	receipt, err := c.waitMined(ctx, eth, tx)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// ClaimWinnings withdraws the payout for a winning bet.
func (c *Client) ClaimWinnings(ctx context.Context, betID int64) (string, error) {
	eth, contract, chainID := c.conn()

	auth, err := c.transactor(ctx, chainID, nil)
	if err != nil {
		return "", err
	}

	tx, err := contract.Transact(auth, "claimWinnings", big.NewInt(betID))
	if err != nil {
		return "", fmt.Errorf("chain: claim winnings for bet %d: %w", betID, err)
	}

	receipt, err := c.waitMined(ctx, eth, tx)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// GetMarket reads a market's on-chain state.
func (c *Client) GetMarket(ctx context.Context, marketID int64) (domain.ChainMarket, error) {
	_, contract, _ := c.conn()

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getMarket", big.NewInt(marketID)); err != nil {
		return domain.ChainMarket{}, fmt.Errorf("chain: get market %d: %w", marketID, err)
	}

	m := *abi.ConvertType(out[0], new(contractMarket)).(*contractMarket)

	outcome := domain.SideNo
	if m.Outcome {
		outcome = domain.SideYes
	}
	return domain.ChainMarket{
		ID:            m.Id.Int64(),
		Question:      m.Question,
		TotalYesStake: money.Format(money.FromWei(m.TotalYesStake)),
		TotalNoStake:  money.Format(money.FromWei(m.TotalNoStake)),
		Resolved:      m.Resolved,
		Outcome:       outcome,
		Exists:        m.Exists,
	}, nil
}

// GetMarketOdds reads the market's pools and returns the percentage split.
func (c *Client) GetMarketOdds(ctx context.Context, marketID int64) (domain.PoolPercents, error) {
	m, err := c.GetMarket(ctx, marketID)
	if err != nil {
		return domain.PoolPercents{}, err
	}
	return money.PoolPercents(m.TotalYesStake, m.TotalNoStake)
}

// GetBet reads a bet's on-chain state.
func (c *Client) GetBet(ctx context.Context, betID int64) (domain.ChainBet, error) {
	_, contract, _ := c.conn()

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getBet", big.NewInt(betID)); err != nil {
		return domain.ChainBet{}, fmt.Errorf("chain: get bet %d: %w", betID, err)
	}

	b := *abi.ConvertType(out[0], new(contractBet)).(*contractBet)

	side := domain.SideNo
	if b.Side {
		side = domain.SideYes
	}
	return domain.ChainBet{
		ID:       b.Id.Int64(),
		MarketID: b.MarketId.Int64(),
		Bettor:   b.Bettor.Hex(),
		Side:     side,
		Amount:   money.Format(money.FromWei(b.Amount)),
		Claimed:  b.Claimed,
	}, nil
}

// CalculateWinnings returns the payout a winning bet would receive, as a
// decimal string in native units.
func (c *Client) CalculateWinnings(ctx context.Context, betID int64) (string, error) {
	_, contract, _ := c.conn()

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "calculateWinnings", big.NewInt(betID)); err != nil {
		return "", fmt.Errorf("chain: calculate winnings for bet %d: %w", betID, err)
	}

	wei := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return money.Format(money.FromWei(wei)), nil
}

// GetUserBets returns all on-chain bet ids for an address.
func (c *Client) GetUserBets(ctx context.Context, address string) ([]int64, error) {
	_, contract, _ := c.conn()

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getUserBets", common.HexToAddress(address)); err != nil {
		return nil, fmt.Errorf("chain: get user bets for %s: %w", address, err)
	}

	raw := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	ids := make([]int64, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, id.Int64())
	}
	return ids, nil
}
