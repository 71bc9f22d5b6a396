package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/transaction"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// centi is n hundredths of a whole 18-decimal unit
func centi(n uint64) *uint256.Int {
	return ledger.Units(n, 16)
}

func whole(n uint64) *uint256.Int { return ledger.Units(n, 18) }

// seeder populates a fresh exchange with a short trading history: one
// cancelled order, three fills, and ten resting orders on each side.
//
// user1 is the deployer (holds the token supply and needs native funds);
// user2 receives tokens and takes the other side.
type seeder struct {
	c       *nodeClient
	log     *zap.SugaredLogger
	user1   *transaction.Wallet
	user2   *transaction.Wallet
	token   common.Address
	exch    common.Address
	pause   time.Duration
	ordersN int
}

func newSeeder(ctx context.Context, c *nodeClient, key1, key2 *crypto.Signer, chainID int64, log *zap.SugaredLogger) (*seeder, error) {
	info, err := c.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if len(info.Tokens) == 0 {
		return nil, errNoToken
	}
	domain := crypto.DefaultDomain(info.Address)
	domain.ChainID.SetInt64(chainID)

	n1, err := c.nonce(ctx, key1.Address())
	if err != nil {
		return nil, err
	}
	n2, err := c.nonce(ctx, key2.Address())
	if err != nil {
		return nil, err
	}

	log.Infow("exchange_fetched", "exchange", info.Address.Hex(), "token", info.Tokens[0].Address.Hex())
	return &seeder{
		c:       c,
		log:     log,
		user1:   transaction.NewWallet(domain, key1, n1),
		user2:   transaction.NewWallet(domain, key2, n2),
		token:   info.Tokens[0].Address,
		exch:    info.Address,
		pause:   time.Second,
		ordersN: 10,
	}, nil
}

func (s *seeder) wait(ctx context.Context) error {
	if s.pause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.pause):
		return nil
	}
}

// makeOrder posts an order from w and returns its id
func (s *seeder) makeOrder(ctx context.Context, w *transaction.Wallet, offered common.Address, amtOffered *uint256.Int, wanted common.Address, amtWanted *uint256.Int) (uint64, error) {
	raw, err := w.MakeOrder(offered, amtOffered, wanted, amtWanted)
	if err != nil {
		return 0, err
	}
	rec, err := s.c.send(ctx, raw)
	if err != nil {
		return 0, err
	}
	s.log.Infow("order_made", "id", rec.OrderID, "maker", w.Address().Hex())
	return rec.OrderID, nil
}

func (s *seeder) run(ctx context.Context) error {
	native := ledger.NativeAsset
	u1, u2 := s.user1.Address(), s.user2.Address()
	do := func(raw []byte, err error) error {
		if err != nil {
			return err
		}
		_, err = s.c.send(ctx, raw)
		return err
	}

	if err := do(s.user1.TokenTransfer(s.token, u2, whole(10_000))); err != nil {
		return err
	}
	s.log.Infow("tokens_transferred", "from", u1.Hex(), "to", u2.Hex(), "amount", whole(10_000).Dec())

	if err := do(s.user1.DepositNative(whole(1))); err != nil {
		return err
	}
	s.log.Infow("native_deposited", "account", u1.Hex(), "amount", whole(1).Dec())

	if err := do(s.user2.TokenApprove(s.token, s.exch, whole(10_000))); err != nil {
		return err
	}
	if err := do(s.user2.DepositAsset(s.token, whole(10_000))); err != nil {
		return err
	}
	s.log.Infow("tokens_deposited", "account", u2.Hex(), "amount", whole(10_000).Dec())

	// a cancelled order
	id, err := s.makeOrder(ctx, s.user1, native, centi(10), s.token, whole(100))
	if err != nil {
		return err
	}
	if err := do(s.user1.CancelOrder(id)); err != nil {
		return err
	}
	s.log.Infow("order_cancelled", "id", id)

	// filled orders
	fills := []struct{ offered, wanted *uint256.Int }{
		{centi(10), whole(100)},
		{centi(1), whole(50)},
		{centi(15), whole(200)},
	}
	for _, f := range fills {
		id, err := s.makeOrder(ctx, s.user1, native, f.offered, s.token, f.wanted)
		if err != nil {
			return err
		}
		if err := do(s.user2.FillOrder(id)); err != nil {
			return err
		}
		s.log.Infow("order_filled", "id", id, "taker", u2.Hex())
		if err := s.wait(ctx); err != nil {
			return err
		}
	}

	// open orders on both sides of the book
	for i := uint64(1); i <= uint64(s.ordersN); i++ {
		if _, err := s.makeOrder(ctx, s.user1, native, centi(1), s.token, whole(10*i)); err != nil {
			return err
		}
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	for i := uint64(1); i <= uint64(s.ordersN); i++ {
		if _, err := s.makeOrder(ctx, s.user2, s.token, whole(10*i), native, centi(1)); err != nil {
			return err
		}
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
