package exchange

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// Trade records a settled fill
type Trade struct {
	Order
	Taker    common.Address `json:"taker"`
	Fee      *uint256.Int   `json:"fee"`
	FilledAt int64          `json:"filledAt"`
}

// Fee returns what the taker pays on top of amountWanted
func (e *Exchange) Fee(amountWanted *uint256.Int) (*uint256.Int, error) {
	return ledger.Percent(amountWanted, e.cfg.FeePercent)
}

// FillOrder settles an open order against taker. The taker pays
// amountWanted plus the fee in assetWanted; the maker receives exactly
// amountWanted and gives amountOffered of assetOffered.
func (e *Exchange) FillOrder(taker common.Address, id uint64) error {
	o, err := e.openOrder(id)
	if err != nil {
		return err
	}
	fee, err := e.Fee(o.AmountWanted)
	if err != nil {
		return err
	}
	cost, err := ledger.Add(o.AmountWanted, fee)
	if err != nil {
		return err
	}

	if have := e.BalanceOf(o.AssetWanted, taker); have.Lt(cost) {
		return errors.Wrapf(ledger.ErrInsufficientBalance,
			"taker %s: have %s, need %s (incl. fee %s)", taker.Hex(), have.Dec(), cost.Dec(), fee.Dec())
	}
	if have := e.BalanceOf(o.AssetOffered, o.Maker); have.Lt(o.AmountOffered) {
		return errors.Wrapf(ledger.ErrInsufficientBalance,
			"maker %s: have %s, need %s", o.Maker.Hex(), have.Dec(), o.AmountOffered.Dec())
	}

	s := e.stage()
	if err := s.debit(o.AssetWanted, taker, cost); err != nil {
		return err
	}
	if err := s.credit(o.AssetWanted, o.Maker, o.AmountWanted); err != nil {
		return err
	}
	if err := s.credit(o.AssetWanted, e.cfg.FeeAccount, fee); err != nil {
		return err
	}
	if err := s.debit(o.AssetOffered, o.Maker, o.AmountOffered); err != nil {
		return err
	}
	if err := s.credit(o.AssetOffered, taker, o.AmountOffered); err != nil {
		return err
	}
	s.commit()

	e.filled[id] = true
	t := Trade{Order: o.clone(), Taker: taker, Fee: fee, FilledAt: e.clock.Now().Unix()}
	e.trades = append(e.trades, t)
	e.emit(eventlog.Trade{
		ID:            o.ID,
		Maker:         o.Maker,
		AssetWanted:   o.AssetWanted,
		AmountWanted:  o.AmountWanted.Clone(),
		AssetOffered:  o.AssetOffered,
		AmountOffered: o.AmountOffered.Clone(),
		Taker:         taker,
		Fee:           fee.Clone(),
		Timestamp:     t.FilledAt,
	})
	return nil
}

// Trades returns settled fills in execution order
func (e *Exchange) Trades() []Trade {
	out := make([]Trade, len(e.trades))
	for i, t := range e.trades {
		out[i] = Trade{Order: t.Order.clone(), Taker: t.Taker, Fee: t.Fee.Clone(), FilledAt: t.FilledAt}
	}
	return out
}

type slot struct {
	asset, account common.Address
}

// staging collects balance writes for one settlement. Reads see earlier
// writes, so the same account or asset appearing on both sides of a trade
// is handled. Nothing touches custody until commit.
type staging struct {
	e      *Exchange
	writes map[slot]*uint256.Int
}

func (e *Exchange) stage() *staging {
	return &staging{e: e, writes: make(map[slot]*uint256.Int, 5)}
}

func (s *staging) get(asset, account common.Address) *uint256.Int {
	if v, ok := s.writes[slot{asset, account}]; ok {
		return v
	}
	return s.e.BalanceOf(asset, account)
}

func (s *staging) debit(asset, account common.Address, amount *uint256.Int) error {
	cur := s.get(asset, account)
	if cur.Lt(amount) {
		return errors.Wrapf(ledger.ErrInsufficientBalance, "%s: have %s, need %s", account.Hex(), cur.Dec(), amount.Dec())
	}
	s.writes[slot{asset, account}] = new(uint256.Int).Sub(cur, amount)
	return nil
}

func (s *staging) credit(asset, account common.Address, amount *uint256.Int) error {
	next, err := ledger.Add(s.get(asset, account), amount)
	if err != nil {
		return err
	}
	s.writes[slot{asset, account}] = next
	return nil
}

func (s *staging) commit() {
	for k, v := range s.writes {
		s.e.set(k.asset, k.account, v)
	}
}
