package token

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

var (
	deployer = common.HexToAddress("0xD000000000000000000000000000000000000000")
	receiver = common.HexToAddress("0xEE00000000000000000000000000000000000000")
	exchange = common.HexToAddress("0xEC00000000000000000000000000000000000000")
)

func tokens(n uint64) *uint256.Int { return ledger.Units(n, 18) }

func newTestToken(t *testing.T) (*Ledger, *eventlog.Buffer) {
	t.Helper()
	buf := eventlog.NewBuffer()
	l, err := New(AddressFor(deployer, 0), deployer, DefaultMetadata(), buf)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return l, buf
}

func TestDeployment(t *testing.T) {
	l, _ := newTestToken(t)

	if l.Name() != "J Token" {
		t.Errorf("name = %q, want %q", l.Name(), "J Token")
	}
	if l.Symbol() != "J23" {
		t.Errorf("symbol = %q, want %q", l.Symbol(), "J23")
	}
	if l.Decimals() != 18 {
		t.Errorf("decimals = %d, want 18", l.Decimals())
	}
	if !l.TotalSupply().Eq(tokens(1_000_000)) {
		t.Errorf("total supply = %s", l.TotalSupply().Dec())
	}
	if !l.BalanceOf(deployer).Eq(tokens(1_000_000)) {
		t.Errorf("deployer balance = %s, want full supply", l.BalanceOf(deployer).Dec())
	}
	if l.Address() == (common.Address{}) {
		t.Error("token must not live at the native sentinel")
	}
}

func TestNewRejectsSentinelAddress(t *testing.T) {
	_, err := New(common.Address{}, deployer, DefaultMetadata(), nil)
	if !errors.Is(err, ledger.ErrInvalidAsset) {
		t.Errorf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	l, buf := newTestToken(t)

	if err := l.Transfer(deployer, receiver, tokens(100)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !l.BalanceOf(receiver).Eq(tokens(100)) {
		t.Errorf("receiver balance = %s, want 100 tokens", l.BalanceOf(receiver).Dec())
	}
	if !l.BalanceOf(deployer).Eq(tokens(999_900)) {
		t.Errorf("deployer balance = %s, want 999900 tokens", l.BalanceOf(deployer).Dec())
	}

	evs := buf.Take()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	tr, ok := evs[0].(eventlog.Transfer)
	if !ok {
		t.Fatalf("event is %T, want Transfer", evs[0])
	}
	if tr.From != deployer || tr.To != receiver || !tr.Value.Eq(tokens(100)) {
		t.Errorf("transfer event = %+v", tr)
	}
}

func TestTransferFailures(t *testing.T) {
	l, buf := newTestToken(t)
	l.Transfer(deployer, receiver, tokens(100))
	buf.Discard()

	tests := []struct {
		name    string
		from    common.Address
		to      common.Address
		amount  *uint256.Int
		wantErr error
	}{
		{"more than supply", deployer, receiver, tokens(100_000_000), ledger.ErrInsufficientBalance},
		{"more than held", receiver, deployer, tokens(101), ledger.ErrInsufficientBalance},
		{"null recipient", deployer, common.Address{}, tokens(1), ledger.ErrInvalidRecipient},
		{"null recipient with zero amount", receiver, common.Address{}, ledger.Zero(), ledger.ErrInvalidRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(tt.from, tt.to, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !l.BalanceOf(receiver).Eq(tokens(100)) || !l.BalanceOf(deployer).Eq(tokens(999_900)) {
				t.Error("failed transfer changed balances")
			}
			if buf.Len() != 0 {
				t.Error("failed transfer emitted an event")
			}
		})
	}
}

func TestApprove(t *testing.T) {
	l, buf := newTestToken(t)

	if err := l.Approve(deployer, exchange, tokens(100)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !l.Allowance(deployer, exchange).Eq(tokens(100)) {
		t.Errorf("allowance = %s, want 100 tokens", l.Allowance(deployer, exchange).Dec())
	}

	evs := buf.Take()
	ap, ok := evs[0].(eventlog.Approval)
	if !ok || ap.Owner != deployer || ap.Spender != exchange || !ap.Value.Eq(tokens(100)) {
		t.Errorf("approval event = %+v", evs[0])
	}

	// approve overwrites rather than adds
	if err := l.Approve(deployer, exchange, tokens(40)); err != nil {
		t.Fatalf("second approve failed: %v", err)
	}
	if !l.Allowance(deployer, exchange).Eq(tokens(40)) {
		t.Errorf("allowance after overwrite = %s, want 40 tokens", l.Allowance(deployer, exchange).Dec())
	}

	if err := l.Approve(deployer, common.Address{}, tokens(1)); !errors.Is(err, ledger.ErrInvalidRecipient) {
		t.Errorf("approve to null spender: expected ErrInvalidRecipient, got %v", err)
	}
}

func TestTransferFrom(t *testing.T) {
	l, buf := newTestToken(t)
	l.Approve(deployer, exchange, tokens(100))
	buf.Discard()

	if err := l.TransferFrom(exchange, deployer, receiver, tokens(100)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if !l.BalanceOf(receiver).Eq(tokens(100)) {
		t.Errorf("receiver balance = %s", l.BalanceOf(receiver).Dec())
	}
	if !l.BalanceOf(deployer).Eq(tokens(999_900)) {
		t.Errorf("deployer balance = %s", l.BalanceOf(deployer).Dec())
	}
	if !l.Allowance(deployer, exchange).IsZero() {
		t.Errorf("allowance not consumed: %s", l.Allowance(deployer, exchange).Dec())
	}

	evs := buf.Take()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if tr := evs[0].(eventlog.Transfer); tr.From != deployer || tr.To != receiver {
		t.Errorf("transfer event = %+v", tr)
	}

	// allowance is spent: any further positive amount fails
	if err := l.TransferFrom(exchange, deployer, receiver, uint256.NewInt(1)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance after allowance spent, got %v", err)
	}
}

func TestTransferFromPartialAllowance(t *testing.T) {
	l, _ := newTestToken(t)
	l.Approve(deployer, exchange, tokens(100))

	if err := l.TransferFrom(exchange, deployer, receiver, tokens(30)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if !l.Allowance(deployer, exchange).Eq(tokens(70)) {
		t.Errorf("allowance = %s, want 70 tokens", l.Allowance(deployer, exchange).Dec())
	}
}

func TestTransferFromFailures(t *testing.T) {
	l, buf := newTestToken(t)
	l.Approve(deployer, exchange, tokens(100))
	l.Transfer(deployer, receiver, tokens(999_950))
	buf.Discard()

	// allowance 100 but only 50 left in the owner's balance
	if err := l.TransferFrom(exchange, deployer, receiver, tokens(100)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := l.TransferFrom(exchange, deployer, receiver, tokens(100_000_000)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := l.TransferFrom(exchange, deployer, common.Address{}, tokens(10)); !errors.Is(err, ledger.ErrInvalidRecipient) {
		t.Errorf("expected ErrInvalidRecipient, got %v", err)
	}
	if !l.Allowance(deployer, exchange).Eq(tokens(100)) {
		t.Errorf("failed transferFrom changed allowance to %s", l.Allowance(deployer, exchange).Dec())
	}
	if buf.Len() != 0 {
		t.Error("failed transferFrom emitted events")
	}
}

func TestSupplyConserved(t *testing.T) {
	l, _ := newTestToken(t)
	l.Transfer(deployer, receiver, tokens(10))
	l.Approve(receiver, exchange, tokens(5))
	l.TransferFrom(exchange, receiver, exchange, tokens(5))

	if !l.balances.Total().Eq(l.TotalSupply()) {
		t.Errorf("sum of balances %s != total supply %s", l.balances.Total().Dec(), l.TotalSupply().Dec())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	l, _ := newTestToken(t)

	if err := r.Register(l); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register(l); ledger.KindOf(err) != ledger.KindInvalidAsset {
		t.Errorf("duplicate register: got %v, want invalid asset", err)
	}
	got, ok := r.Get(l.Address())
	if !ok || got != l {
		t.Error("registered token not found")
	}
	if _, ok := r.Get(common.Address{}); ok {
		t.Error("sentinel must not resolve to a token")
	}
	if len(r.List()) != 1 {
		t.Errorf("List() has %d tokens, want 1", len(r.List()))
	}
}
