package exchange

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/native"
	"github.com/uhyunpark/escrowdex/pkg/app/core/token"
)

func TestExchangeProperties(t *testing.T) {
	rapid.Check(t, rapid.Run(&exchangeModel{}))
}

var propUsers = []common.Address{user1, user2, deployer}

// exchangeModel drives random operations and tracks expected custody
// with plain integers next to the real engine.
type exchangeModel struct {
	ex    *Exchange
	bank  *native.Bank
	token *token.Ledger

	custody map[slot]uint64
	status  map[uint64]Status
}

func (m *exchangeModel) Init(t *rapid.T) {
	m.bank = native.NewBank()
	for _, u := range propUsers {
		m.bank.Credit(u, uint256.NewInt(1_000))
	}
	tok, err := token.New(token.AddressFor(deployer, 0), deployer, token.Metadata{Name: "T", Symbol: "T", Supply: 3_000}, nil)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	tok.Transfer(deployer, user1, uint256.NewInt(1_000))
	tok.Transfer(deployer, user2, uint256.NewInt(1_000))
	m.token = tok

	resolver := AssetResolverFunc(func(asset common.Address) (AssetLedger, bool) {
		if asset == tok.Address() {
			return tok, true
		}
		return nil, false
	})
	m.ex, err = New(Config{Address: exAddr, FeeAccount: feeAccount, FeePercent: DefaultFeePercent},
		m.bank, resolver, fixedClock{time.Unix(1, 0)}, nil)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	m.custody = make(map[slot]uint64)
	m.status = make(map[uint64]Status)
}

func (m *exchangeModel) drawUser(t *rapid.T, label string) common.Address {
	return rapid.SampledFrom(propUsers).Draw(t, label).(common.Address)
}

func (m *exchangeModel) drawAsset(t *rapid.T, label string) common.Address {
	return rapid.SampledFrom([]common.Address{ledger.NativeAsset, m.token.Address()}).Draw(t, label).(common.Address)
}

func drawAmount(t *rapid.T, label string) uint64 {
	return rapid.Uint64Range(0, 400).Draw(t, label).(uint64)
}

func (m *exchangeModel) Deposit(t *rapid.T) {
	user := m.drawUser(t, "user")
	asset := m.drawAsset(t, "asset")
	amt := drawAmount(t, "amount")

	var err error
	if ledger.IsNative(asset) {
		err = m.ex.DepositNative(user, uint256.NewInt(amt))
	} else {
		m.token.Approve(user, exAddr, uint256.NewInt(amt))
		err = m.ex.DepositAsset(user, asset, uint256.NewInt(amt))
	}
	if err == nil {
		m.custody[slot{asset, user}] += amt
	}
}

func (m *exchangeModel) Withdraw(t *rapid.T) {
	user := m.drawUser(t, "user")
	asset := m.drawAsset(t, "asset")
	amt := drawAmount(t, "amount")

	var err error
	if ledger.IsNative(asset) {
		err = m.ex.WithdrawNative(user, uint256.NewInt(amt))
	} else {
		err = m.ex.WithdrawAsset(user, asset, uint256.NewInt(amt))
	}
	have := m.custody[slot{asset, user}]
	if (err == nil) != (have >= amt) {
		t.Fatalf("withdraw %d of %d: err = %v", amt, have, err)
	}
	if err == nil {
		m.custody[slot{asset, user}] = have - amt
	}
}

func (m *exchangeModel) MakeOrder(t *rapid.T) {
	maker := m.drawUser(t, "maker")
	give := m.drawAsset(t, "give")
	get := m.drawAsset(t, "get")
	id := m.ex.MakeOrder(maker, give, uint256.NewInt(drawAmount(t, "amountGive")), get, uint256.NewInt(drawAmount(t, "amountGet")))
	if id != uint64(len(m.status))+1 {
		t.Fatalf("order id %d, want %d", id, len(m.status)+1)
	}
	m.status[id] = StatusOpen
}

func (m *exchangeModel) CancelOrder(t *rapid.T) {
	if len(m.status) == 0 {
		return
	}
	id := rapid.Uint64Range(1, uint64(len(m.status))).Draw(t, "id").(uint64)
	o, _ := m.ex.Order(id)
	caller := m.drawUser(t, "caller")

	err := m.ex.CancelOrder(caller, id)
	ok := m.status[id] == StatusOpen && caller == o.Maker
	if (err == nil) != ok {
		t.Fatalf("cancel %d by %s: err = %v, status %s", id, caller.Hex(), err, m.status[id])
	}
	if err == nil {
		m.status[id] = StatusCancelled
	}
}

func (m *exchangeModel) FillOrder(t *rapid.T) {
	if len(m.status) == 0 {
		return
	}
	id := rapid.Uint64Range(1, uint64(len(m.status))).Draw(t, "id").(uint64)
	taker := m.drawUser(t, "taker")
	o, _ := m.ex.Order(id)

	get, give := o.AmountWanted.Uint64(), o.AmountOffered.Uint64()
	fee := get * DefaultFeePercent / 100
	ok := m.status[id] == StatusOpen &&
		m.custody[slot{o.AssetWanted, taker}] >= get+fee &&
		m.custody[slot{o.AssetOffered, o.Maker}] >= give

	// the five moves apply in order; with aliasing a later debit can still fail
	next := make(map[slot]uint64, len(m.custody))
	for k, v := range m.custody {
		next[k] = v
	}
	move := func(s slot, debit, credit uint64) {
		if next[s] < debit {
			ok = false
			return
		}
		next[s] = next[s] - debit + credit
	}
	move(slot{o.AssetWanted, taker}, get+fee, 0)
	move(slot{o.AssetWanted, o.Maker}, 0, get)
	move(slot{o.AssetWanted, feeAccount}, 0, fee)
	move(slot{o.AssetOffered, o.Maker}, give, 0)
	move(slot{o.AssetOffered, taker}, 0, give)

	err := m.ex.FillOrder(taker, id)
	if (err == nil) != ok {
		t.Fatalf("fill %d by %s: err = %v, expected success %v", id, taker.Hex(), err, ok)
	}
	if err == nil {
		m.status[id] = StatusFilled
		m.custody = next
	}
}

func (m *exchangeModel) Check(t *rapid.T) {
	for _, asset := range []common.Address{ledger.NativeAsset, m.token.Address()} {
		for _, acct := range append(propUsers, feeAccount) {
			want := m.custody[slot{asset, acct}]
			if got := m.ex.BalanceOf(asset, acct); got.Uint64() != want || !got.IsUint64() {
				t.Fatalf("custody %s/%s = %s, want %d", asset.Hex(), acct.Hex(), got.Dec(), want)
			}
		}
	}

	// custody is fully backed by what the exchange holds
	if !m.bank.BalanceOf(exAddr).Eq(m.ex.CustodyTotal(ledger.NativeAsset)) {
		t.Fatalf("native held %s != custody %s", m.bank.BalanceOf(exAddr).Dec(), m.ex.CustodyTotal(ledger.NativeAsset).Dec())
	}
	if !m.token.BalanceOf(exAddr).Eq(m.ex.CustodyTotal(m.token.Address())) {
		t.Fatalf("tokens held %s != custody %s", m.token.BalanceOf(exAddr).Dec(), m.ex.CustodyTotal(m.token.Address()).Dec())
	}
	if m.bank.Total().Uint64() != 3_000 {
		t.Fatalf("native supply drifted to %s", m.bank.Total().Dec())
	}

	for id, st := range m.status {
		if m.ex.OrderFilled(id) && m.ex.OrderCancelled(id) {
			t.Fatalf("order %d both filled and cancelled", id)
		}
		if got, _ := m.ex.Status(id); got != st {
			t.Fatalf("order %d status %s, want %s", id, got, st)
		}
	}
}
