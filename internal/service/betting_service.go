// Package service orchestrates the betting flows: precondition checks, chain
// calls, and the ledger mutations that follow a confirmed transaction. All
// chain and wallet failures are handled here, before the ledger is touched;
// the ledger itself never observes a failed bet.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/attnroulette/betledger/internal/chain"
	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/ledger"
	"github.com/attnroulette/betledger/internal/money"
	"github.com/attnroulette/betledger/internal/notify"
)

// defaultMarketDuration is how long a lazily created market stays open.
const defaultMarketDuration = 48 * time.Hour

// potentialMultiplier is the displayed potential-return factor at bet time.
// The true payout depends on the final pool split and is only known at
// resolution; this matches what the card shows the user up front.
var potentialMultiplier = decimal.NewFromFloat(1.8)

// PlaceBetRequest carries everything needed to stake one bet.
type PlaceBetRequest struct {
	UserKey        string
	Address        string
	LocalMarketID  int64
	MarketQuestion string
	Side           domain.Side
	Amount         string
	Social         *domain.SocialSnapshot
}

// BettingService drives bets, claims, and balance refreshes through the
// chain client and records the outcomes in the ledger.
type BettingService struct {
	ledger   *ledger.Manager
	chain    domain.ChainClient
	registry *chain.Registry
	balances domain.BalanceCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewBettingService creates a BettingService with all required dependencies.
func NewBettingService(
	mgr *ledger.Manager,
	chainClient domain.ChainClient,
	registry *chain.Registry,
	balances domain.BalanceCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *BettingService {
	return &BettingService{
		ledger:   mgr,
		chain:    chainClient,
		registry: registry,
		balances: balances,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "betting_service")),
	}
}

// PlaceBet validates preconditions, ensures the market exists on-chain,
// stakes the bet, and records it. The ledger is mutated only after the chain
// call succeeds; on success the bet is recorded, the optimistic balance
// debited, and the market pools updated, in that order.
func (s *BettingService) PlaceBet(ctx context.Context, req PlaceBetRequest) (domain.Bet, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return domain.Bet{}, err
	}
	if amount.IsZero() {
		return domain.Bet{}, fmt.Errorf("betting: zero amount: %w", domain.ErrInvalidAmount)
	}
	if !req.Side.Valid() {
		return domain.Bet{}, fmt.Errorf("betting: side %q: %w", req.Side, domain.ErrInvalidSide)
	}

	// Precondition: the optimistic balance must cover the stake. No cached
	// balance means no read has been observed yet; the chain call itself is
	// the backstop in that case.
	var selectedChain int64
	err = s.ledger.View(ctx, req.UserKey, func(l *ledger.Ledger) error {
		selectedChain = l.Session().SelectedChain
		if bal := l.OptimisticBalance(); bal != nil {
			current, perr := money.Parse(*bal)
			if perr != nil {
				return perr
			}
			if !current.IsZero() && amount.GreaterThan(current) {
				return fmt.Errorf("betting: stake %s exceeds balance %s: %w",
					req.Amount, *bal, domain.ErrInsufficientFunds)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	// Operate on the chain the session points at.
	if s.chain.ChainID() != selectedChain {
		if err := s.chain.SwitchNetwork(ctx, selectedChain); err != nil {
			return domain.Bet{}, chain.Classify(err)
		}
	}

	blockchainMarketID, err := s.ensureMarket(ctx, req)
	if err != nil {
		return domain.Bet{}, err
	}

	// Two-phase intent: mark the place-bet call in flight so a crash between
	// market creation and bet confirmation leaves a visible trace instead of
	// a silent inconsistency.
	intent := domain.BetIntent{
		ID:        uuid.NewString(),
		MarketID:  req.LocalMarketID,
		Side:      req.Side,
		Amount:    money.Format(amount),
		CreatedAt: time.Now().UTC(),
	}
	err = s.ledger.Mutate(ctx, req.UserKey, func(l *ledger.Ledger) error {
		l.BeginIntent(intent)
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	result, betErr := s.chain.PlaceBet(ctx, blockchainMarketID, req.Side, req.Amount)
	if betErr != nil {
		// Outcome known: the bet did not land. Discard the intent.
		discardErr := s.ledger.Mutate(ctx, req.UserKey, func(l *ledger.Ledger) error {
			l.ResolveIntent(intent.ID)
			return nil
		})
		if discardErr != nil {
			s.logger.ErrorContext(ctx, "discard intent failed",
				slog.String("intent_id", intent.ID),
				slog.String("error", discardErr.Error()),
			)
		}
		if chain.IsBenign(betErr) {
			s.logger.WarnContext(ctx, "benign transport error during bet",
				slog.String("error", betErr.Error()),
			)
		}
		return domain.Bet{}, chain.Classify(betErr)
	}

	bet := domain.Bet{
		ID:                 "bet_" + uuid.NewString(),
		MarketID:           req.LocalMarketID,
		BlockchainMarketID: &blockchainMarketID,
		ChainBetID:         strconv.FormatInt(result.BetID, 10),
		TxHash:             result.TxHash,
		Side:               req.Side,
		Amount:             money.Format(amount),
		Status:             domain.BetStatusActive,
		Timestamp:          time.Now().UTC(),
		Chain:              selectedChain,
		ChainName:          s.registry.Name(selectedChain),
		MarketQuestion:     req.MarketQuestion,
		PotentialWinnings:  money.Format(amount.Mul(potentialMultiplier)),
		Social:             req.Social,
	}

	err = s.ledger.Mutate(ctx, req.UserKey, func(l *ledger.Ledger) error {
		l.RecordBet(bet)
		if err := l.SubtractFromBalance(bet.Amount); err != nil {
			return err
		}
		if err := l.AddStake(req.LocalMarketID, req.Side, bet.Amount); err != nil {
			return err
		}
		l.UpdateMarketState(req.LocalMarketID, domain.MarketStateUpdate{
			BlockchainMarketID: &blockchainMarketID,
			AppendBetID:        bet.ID,
		})
		l.ResolveIntent(intent.ID)
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.emit(ctx, "bet_placed", map[string]any{
		"user_key":  req.UserKey,
		"bet_id":    bet.ID,
		"market_id": req.LocalMarketID,
		"side":      string(bet.Side),
		"amount":    bet.Amount,
		"tx_hash":   bet.TxHash,
	})
	s.logger.InfoContext(ctx, "bet placed",
		slog.String("bet_id", bet.ID),
		slog.Int64("market_id", req.LocalMarketID),
		slog.String("side", string(bet.Side)),
		slog.String("amount", bet.Amount),
	)

	return bet, nil
}

// ensureMarket returns the blockchain market id for the local market,
// creating the market on-chain the first time a bet targets it.
func (s *BettingService) ensureMarket(ctx context.Context, req PlaceBetRequest) (int64, error) {
	var known *int64
	err := s.ledger.View(ctx, req.UserKey, func(l *ledger.Ledger) error {
		if ms := l.MarketState(req.LocalMarketID); ms != nil && ms.BlockchainMarketID != nil {
			id := *ms.BlockchainMarketID
			known = &id
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if known != nil {
		return *known, nil
	}

	// The market may already exist on-chain under the local id (another
	// session created it).
	if m, err := s.chain.GetMarket(ctx, req.LocalMarketID); err == nil && m.Exists {
		id := req.LocalMarketID
		err = s.ledger.Mutate(ctx, req.UserKey, func(l *ledger.Ledger) error {
			created := true
			l.UpdateMarketState(req.LocalMarketID, domain.MarketStateUpdate{
				BlockchainMarketID: &id,
				Created:            &created,
			})
			return nil
		})
		return id, err
	}

	question := req.MarketQuestion
	if question == "" {
		question = fmt.Sprintf("Prediction Market #%d", req.LocalMarketID)
	}

	created, err := s.chain.CreateMarket(ctx, question, int64(defaultMarketDuration.Seconds()))
	if err != nil {
		return 0, chain.Classify(err)
	}

	err = s.ledger.Mutate(ctx, req.UserKey, func(l *ledger.Ledger) error {
		flag := true
		l.UpdateMarketState(req.LocalMarketID, domain.MarketStateUpdate{
			BlockchainMarketID: &created.MarketID,
			Created:            &flag,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.emit(ctx, "market_created", map[string]any{
		"user_key":             req.UserKey,
		"local_market_id":      req.LocalMarketID,
		"blockchain_market_id": created.MarketID,
		"tx_hash":              created.TxHash,
	})
	return created.MarketID, nil
}

// MarketOdds reads the live on-chain pool split for a market. Unlike the
// session market view, this reflects stakes from every bettor, not just the
// ones this ledger tracks.
func (s *BettingService) MarketOdds(ctx context.Context, chainMarketID int64) (domain.PoolPercents, error) {
	odds, err := s.chain.GetMarketOdds(ctx, chainMarketID)
	if err != nil {
		return domain.PoolPercents{}, chain.Classify(err)
	}
	return odds, nil
}

// ClaimWinnings withdraws the payout for a won bet and credits it to the
// optimistic balance. Only a bet in the won state is claimable.
func (s *BettingService) ClaimWinnings(ctx context.Context, userKey, betID string) (string, error) {
	var bet domain.Bet
	err := s.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		b, ok := l.Bet(betID)
		if !ok {
			return fmt.Errorf("betting: bet %q: %w", betID, domain.ErrNotFound)
		}
		if b.Status != domain.BetStatusWon {
			return fmt.Errorf("betting: bet %q is %s: %w", betID, b.Status, domain.ErrNotClaimable)
		}
		bet = b
		return nil
	})
	if err != nil {
		return "", err
	}

	chainBetID, err := strconv.ParseInt(bet.ChainBetID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("betting: bet %q has no chain bet id: %w", betID, domain.ErrNotClaimable)
	}

	// Read the payout before claiming; afterwards the contract reports zero.
	payout, err := s.chain.CalculateWinnings(ctx, chainBetID)
	if err != nil {
		return "", chain.Classify(err)
	}

	txHash, err := s.chain.ClaimWinnings(ctx, chainBetID)
	if err != nil {
		if chain.IsBenign(err) {
			s.logger.WarnContext(ctx, "benign transport error during claim",
				slog.String("error", err.Error()),
			)
		}
		return "", chain.Classify(err)
	}

	err = s.ledger.Mutate(ctx, userKey, func(l *ledger.Ledger) error {
		l.UpdateBetStatus(betID, domain.BetStatusClaimed)
		return l.AddToBalance(payout)
	})
	if err != nil {
		return "", err
	}

	s.emit(ctx, "winnings_claimed", map[string]any{
		"user_key": userKey,
		"bet_id":   betID,
		"payout":   payout,
		"tx_hash":  txHash,
	})
	s.logger.InfoContext(ctx, "winnings claimed",
		slog.String("bet_id", betID),
		slog.String("payout", payout),
	)
	return txHash, nil
}

// RefreshBalance reads the confirmed balance for address, caches it, and
// replaces the session's optimistic balance with it.
func (s *BettingService) RefreshBalance(ctx context.Context, userKey, address string) (string, error) {
	balance, err := s.balances.Get(ctx, address)
	if errors.Is(err, domain.ErrNotFound) {
		balance, err = s.chain.GetBalance(ctx, address)
		if err != nil {
			if chain.IsBenign(err) {
				s.logger.WarnContext(ctx, "benign transport error during balance read",
					slog.String("error", err.Error()),
				)
			}
			return "", chain.Classify(err)
		}
		if cacheErr := s.balances.Set(ctx, address, balance); cacheErr != nil {
			s.logger.WarnContext(ctx, "balance cache write failed",
				slog.String("error", cacheErr.Error()),
			)
		}
	} else if err != nil {
		return "", err
	}

	err = s.ledger.Mutate(ctx, userKey, func(l *ledger.Ledger) error {
		return l.SetOptimisticBalance(&balance)
	})
	if err != nil {
		return "", err
	}
	return balance, nil
}

// SelectChain switches the session (and the chain client) to a supported
// chain.
func (s *BettingService) SelectChain(ctx context.Context, userKey string, chainID int64) error {
	if !s.registry.Supported(chainID) {
		return fmt.Errorf("betting: chain %d: %w", chainID, domain.ErrWrongNetwork)
	}
	if err := s.chain.SwitchNetwork(ctx, chainID); err != nil {
		return chain.Classify(err)
	}
	return s.ledger.Mutate(ctx, userKey, func(l *ledger.Ledger) error {
		l.SetSelectedChain(chainID)
		// The optimistic balance belonged to the previous chain.
		return l.SetOptimisticBalance(nil)
	})
}

// ResolveMarket settles a market on-chain with the given outcome. Ledger
// transitions for affected bets are driven by the reconciler, not here.
func (s *BettingService) ResolveMarket(ctx context.Context, userKey string, localMarketID int64, outcome domain.Side) (string, error) {
	var blockchainID *int64
	err := s.ledger.View(ctx, userKey, func(l *ledger.Ledger) error {
		if ms := l.MarketState(localMarketID); ms != nil {
			blockchainID = ms.BlockchainMarketID
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if blockchainID == nil {
		return "", fmt.Errorf("betting: market %d not created on-chain: %w", localMarketID, domain.ErrNotFound)
	}

	txHash, err := s.chain.ResolveMarket(ctx, *blockchainID, outcome)
	if err != nil {
		return "", chain.Classify(err)
	}

	s.emit(ctx, "market_resolved", map[string]any{
		"user_key":             userKey,
		"local_market_id":      localMarketID,
		"blockchain_market_id": *blockchainID,
		"outcome":              string(outcome),
		"tx_hash":              txHash,
	})
	return txHash, nil
}

// emit publishes a ledger event on the signal bus, audit log, and
// notification channels. Delivery failures are logged, never propagated.
func (s *BettingService) emit(ctx context.Context, event string, detail map[string]any) {
	payload, _ := json.Marshal(map[string]any{"event": event, "detail": detail})
	if err := s.bus.Publish(ctx, "ledger", payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, event, notify.EventTitle(event), fmt.Sprintf("%v", detail)); err != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
