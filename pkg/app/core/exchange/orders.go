package exchange

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// Status is an order's lifecycle state
type Status string

const (
	StatusOpen      Status = "open"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
)

// Order is a standing offer to give AmountOffered of AssetOffered in
// exchange for AmountWanted of AssetWanted. Immutable once created.
type Order struct {
	ID            uint64         `json:"id"`
	Maker         common.Address `json:"maker"`
	AssetWanted   common.Address `json:"assetWanted"`
	AmountWanted  *uint256.Int   `json:"amountWanted"`
	AssetOffered  common.Address `json:"assetOffered"`
	AmountOffered *uint256.Int   `json:"amountOffered"`
	Timestamp     int64          `json:"timestamp"` // unix seconds
}

func (o *Order) clone() Order {
	c := *o
	c.AmountWanted = o.AmountWanted.Clone()
	c.AmountOffered = o.AmountOffered.Clone()
	return c
}

// MakeOrder stores a new order and returns its id. Ids start at 1.
// The maker's custody balance is not checked here; an order the maker
// cannot cover simply fails to fill.
func (e *Exchange) MakeOrder(maker, assetOffered common.Address, amountOffered *uint256.Int, assetWanted common.Address, amountWanted *uint256.Int) uint64 {
	e.orderCount++
	o := &Order{
		ID:            e.orderCount,
		Maker:         maker,
		AssetWanted:   assetWanted,
		AmountWanted:  amountWanted.Clone(),
		AssetOffered:  assetOffered,
		AmountOffered: amountOffered.Clone(),
		Timestamp:     e.clock.Now().Unix(),
	}
	e.orders[o.ID] = o
	e.emit(eventlog.OrderCreated{
		ID:            o.ID,
		Maker:         o.Maker,
		AssetWanted:   o.AssetWanted,
		AmountWanted:  o.AmountWanted.Clone(),
		AssetOffered:  o.AssetOffered,
		AmountOffered: o.AmountOffered.Clone(),
		Timestamp:     o.Timestamp,
	})
	return o.ID
}

// CancelOrder marks an open order cancelled. Only the maker may cancel.
func (e *Exchange) CancelOrder(caller common.Address, id uint64) error {
	o, err := e.openOrder(id)
	if err != nil {
		return err
	}
	if o.Maker != caller {
		return errors.Wrapf(ledger.ErrUnauthorized, "order %d belongs to %s", id, o.Maker.Hex())
	}
	e.cancelled[id] = true
	e.emit(eventlog.OrderCancelled{
		ID:            o.ID,
		Maker:         o.Maker,
		AssetWanted:   o.AssetWanted,
		AmountWanted:  o.AmountWanted.Clone(),
		AssetOffered:  o.AssetOffered,
		AmountOffered: o.AmountOffered.Clone(),
		Timestamp:     o.Timestamp,
	})
	return nil
}

// openOrder returns the order if it exists and is neither filled nor cancelled
func (e *Exchange) openOrder(id uint64) (*Order, error) {
	o, ok := e.orders[id]
	if !ok {
		return nil, errors.Wrapf(ledger.ErrNotFound, "order %d", id)
	}
	if e.filled[id] {
		return nil, errors.Wrapf(ledger.ErrAlreadyFinalized, "order %d is filled", id)
	}
	if e.cancelled[id] {
		return nil, errors.Wrapf(ledger.ErrAlreadyFinalized, "order %d is cancelled", id)
	}
	return o, nil
}

// OrderCount is the id of the most recent order (0 before the first)
func (e *Exchange) OrderCount() uint64 { return e.orderCount }

// Order returns a copy of the order with the given id
func (e *Exchange) Order(id uint64) (Order, bool) {
	o, ok := e.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

func (e *Exchange) OrderFilled(id uint64) bool    { return e.filled[id] }
func (e *Exchange) OrderCancelled(id uint64) bool { return e.cancelled[id] }

// Status reports the lifecycle state of an existing order
func (e *Exchange) Status(id uint64) (Status, error) {
	if _, ok := e.orders[id]; !ok {
		return "", errors.Wrapf(ledger.ErrNotFound, "order %d", id)
	}
	switch {
	case e.filled[id]:
		return StatusFilled, nil
	case e.cancelled[id]:
		return StatusCancelled, nil
	default:
		return StatusOpen, nil
	}
}

func (e *Exchange) OpenOrders() []Order {
	return e.ordersWhere(func(id uint64) bool { return !e.filled[id] && !e.cancelled[id] })
}

func (e *Exchange) FilledOrders() []Order {
	return e.ordersWhere(func(id uint64) bool { return e.filled[id] })
}

func (e *Exchange) CancelledOrders() []Order {
	return e.ordersWhere(func(id uint64) bool { return e.cancelled[id] })
}

// ordersWhere returns matching orders sorted by id
func (e *Exchange) ordersWhere(match func(id uint64) bool) []Order {
	out := make([]Order, 0)
	for id, o := range e.orders {
		if match(id) {
			out = append(out, o.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
