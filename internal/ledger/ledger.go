// Package ledger owns the per-user betting session: the append-only bet
// list, per-market pool aggregates, the selected chain, and the optimistic
// balance. It is the single authority for what the user has bet and what
// their apparent balance is, ahead of chain confirmation.
package ledger

import (
	"github.com/attnroulette/betledger/internal/domain"
	"github.com/attnroulette/betledger/internal/money"
)

// Ledger applies mutations and projections to one LedgerSession. It performs
// no I/O; persistence is the Manager's concern. All failure handling (wallet
// rejection, insufficient balance, chain mismatch) happens in the calling
// layers before the ledger is touched.
type Ledger struct {
	s *domain.LedgerSession
}

// New wraps an existing session.
func New(s *domain.LedgerSession) *Ledger {
	return &Ledger{s: s}
}

// Session exposes the underlying session for serialization.
func (l *Ledger) Session() *domain.LedgerSession {
	return l.s
}

// RecordBet prepends a fully formed bet to the list (newest first). The
// caller has already validated the amount by completing the chain call;
// duplicate submission guarding for the same transaction hash is likewise
// the caller's responsibility.
func (l *Ledger) RecordBet(bet domain.Bet) {
	l.s.Bets = append([]domain.Bet{bet}, l.s.Bets...)
}

// UpdateBetStatus transitions a bet's status. An unknown id is a benign
// no-op, not an error: repeated status-sync calls are expected. A bet in a
// terminal status is never modified.
func (l *Ledger) UpdateBetStatus(id string, status domain.BetStatus) bool {
	for i := range l.s.Bets {
		if l.s.Bets[i].ID != id {
			continue
		}
		if l.s.Bets[i].Status.Terminal() {
			return false
		}
		l.s.Bets[i].Status = status
		return true
	}
	return false
}

// Bet returns the bet with the given id.
func (l *Ledger) Bet(id string) (domain.Bet, bool) {
	for _, b := range l.s.Bets {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bet{}, false
}

// UpdateMarketState merges a partial update into the market's aggregate,
// creating it lazily on first reference. A blockchain market id, once set,
// is never replaced.
func (l *Ledger) UpdateMarketState(localMarketID int64, upd domain.MarketStateUpdate) *domain.MarketState {
	ms, ok := l.s.Markets[localMarketID]
	if !ok {
		ms = &domain.MarketState{
			LocalMarketID: localMarketID,
			TotalYesBets:  "0.0000",
			TotalNoBets:   "0.0000",
		}
		l.s.Markets[localMarketID] = ms
	}

	if upd.BlockchainMarketID != nil && ms.BlockchainMarketID == nil {
		id := *upd.BlockchainMarketID
		ms.BlockchainMarketID = &id
	}
	if upd.TotalYesBets != nil {
		ms.TotalYesBets = *upd.TotalYesBets
	}
	if upd.TotalNoBets != nil {
		ms.TotalNoBets = *upd.TotalNoBets
	}
	if upd.Created != nil {
		ms.Created = *upd.Created
	}
	if upd.AppendBetID != "" {
		ms.BetIDs = append(ms.BetIDs, upd.AppendBetID)
	}
	return ms
}

// MarketState returns the aggregate for a market, or nil if no bet has ever
// targeted it.
func (l *Ledger) MarketState(localMarketID int64) *domain.MarketState {
	return l.s.Markets[localMarketID]
}

// AddStake folds a confirmed bet amount into the market's pool totals.
// Pool totals only ever grow; bets are never retracted locally.
func (l *Ledger) AddStake(localMarketID int64, side domain.Side, amount string) error {
	ms := l.UpdateMarketState(localMarketID, domain.MarketStateUpdate{})
	if side == domain.SideYes {
		total, err := money.Add(ms.TotalYesBets, amount)
		if err != nil {
			return err
		}
		ms.TotalYesBets = total
		return nil
	}
	total, err := money.Add(ms.TotalNoBets, amount)
	if err != nil {
		return err
	}
	ms.TotalNoBets = total
	return nil
}

// PoolPercents returns the integer pool split for a market; a market with no
// recorded stakes reports 50/50.
func (l *Ledger) PoolPercents(localMarketID int64) (domain.PoolPercents, error) {
	ms, ok := l.s.Markets[localMarketID]
	if !ok {
		return domain.PoolPercents{Yes: 50, No: 50}, nil
	}
	return money.PoolPercents(ms.TotalYesBets, ms.TotalNoBets)
}

// SetSelectedChain records the chain the user is operating on.
func (l *Ledger) SetSelectedChain(chainID int64) {
	l.s.SelectedChain = chainID
}

// SetOptimisticBalance replaces the cached display balance, typically right
// after a confirmed balance read. Passing nil clears it.
func (l *Ledger) SetOptimisticBalance(balance *string) error {
	if balance == nil {
		l.s.OptimisticBalance = nil
		return nil
	}
	d, err := money.Parse(*balance)
	if err != nil {
		return err
	}
	v := money.Format(d)
	l.s.OptimisticBalance = &v
	return nil
}

// OptimisticBalance returns the cached balance, or nil when no confirmed
// read has been observed yet.
func (l *Ledger) OptimisticBalance() *string {
	return l.s.OptimisticBalance
}

// SubtractFromBalance lowers the optimistic balance by amount, clamped at
// zero. A missing balance is a no-op: there is nothing to adjust before a
// real read has been observed.
func (l *Ledger) SubtractFromBalance(amount string) error {
	if l.s.OptimisticBalance == nil {
		return nil
	}
	next, err := money.SubClamped(*l.s.OptimisticBalance, amount)
	if err != nil {
		return err
	}
	l.s.OptimisticBalance = &next
	return nil
}

// AddToBalance raises the optimistic balance by amount, used when a claimed
// payout lands. A missing balance is a no-op.
func (l *Ledger) AddToBalance(amount string) error {
	if l.s.OptimisticBalance == nil {
		return nil
	}
	next, err := money.Add(*l.s.OptimisticBalance, amount)
	if err != nil {
		return err
	}
	l.s.OptimisticBalance = &next
	return nil
}

// BeginIntent records an in-flight place-bet intent.
func (l *Ledger) BeginIntent(intent domain.BetIntent) {
	l.s.Intents = append(l.s.Intents, intent)
}

// ResolveIntent discards an intent once its outcome is known. Unknown ids
// are ignored.
func (l *Ledger) ResolveIntent(id string) bool {
	for i, in := range l.s.Intents {
		if in.ID == id {
			l.s.Intents = append(l.s.Intents[:i], l.s.Intents[i+1:]...)
			return true
		}
	}
	return false
}

// OpenIntents returns the in-flight intents, oldest first.
func (l *Ledger) OpenIntents() []domain.BetIntent {
	out := make([]domain.BetIntent, len(l.s.Intents))
	copy(out, l.s.Intents)
	return out
}

// ---------------------------------------------------------------------------
// Projections. These are recomputed on every call over the stored bet list;
// there are no cached counters that could drift.
// ---------------------------------------------------------------------------

// BetsByMarket returns the bets placed on one market, newest first.
func (l *Ledger) BetsByMarket(localMarketID int64) []domain.Bet {
	var out []domain.Bet
	for _, b := range l.s.Bets {
		if b.MarketID == localMarketID {
			out = append(out, b)
		}
	}
	return out
}

// Bets returns a copy of the full bet list, newest first.
func (l *Ledger) Bets() []domain.Bet {
	out := make([]domain.Bet, len(l.s.Bets))
	copy(out, l.s.Bets)
	return out
}

// ActiveBetsCount counts bets awaiting resolution (pending or active).
func (l *Ledger) ActiveBetsCount() int {
	n := 0
	for _, b := range l.s.Bets {
		if b.Status == domain.BetStatusActive || b.Status == domain.BetStatusPending {
			n++
		}
	}
	return n
}

// WinsCount counts bets resolved in the user's favor, claimed or not.
func (l *Ledger) WinsCount() int {
	n := 0
	for _, b := range l.s.Bets {
		if b.Status == domain.BetStatusWon || b.Status == domain.BetStatusClaimed {
			n++
		}
	}
	return n
}

// LossCount counts bets resolved against the user.
func (l *Ledger) LossCount() int {
	n := 0
	for _, b := range l.s.Bets {
		if b.Status == domain.BetStatusLost {
			n++
		}
	}
	return n
}

// TotalBetsCount is the length of the bet list.
func (l *Ledger) TotalBetsCount() int {
	return len(l.s.Bets)
}

// Stats aggregates the user's record: totals, win rate over resolved bets,
// and the sum wagered across all bets.
func (l *Ledger) Stats() (domain.UserStats, error) {
	wagered := "0.0000"
	for _, b := range l.s.Bets {
		next, err := money.Add(wagered, b.Amount)
		if err != nil {
			return domain.UserStats{}, err
		}
		wagered = next
	}

	wins := l.WinsCount()
	losses := l.LossCount()
	rate := 0.0
	if wins+losses > 0 {
		rate = float64(wins) / float64(wins+losses) * 100
	}

	return domain.UserStats{
		UserKey:      l.s.UserKey,
		TotalBets:    len(l.s.Bets),
		ActiveBets:   l.ActiveBetsCount(),
		Wins:         wins,
		Losses:       losses,
		TotalWagered: wagered,
		WinRate:      rate,
	}, nil
}
