package ledger

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"bare sentinel", ErrNotFound, KindNotFound},
		{"wrapped", errors.Wrapf(ErrInsufficientBalance, "withdraw %d", 5), KindInsufficientBalance},
		{"double wrapped", fmt.Errorf("tx: %w", errors.Wrap(ErrUnauthorized, "cancel")), KindUnauthorized},
		{"unrelated", errors.New("disk on fire"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBalancesDebitCredit(t *testing.T) {
	b := Balances{}

	if got := b.Get(alice); !got.IsZero() {
		t.Fatalf("fresh balance = %s, want 0", got.Dec())
	}

	bal, err := b.Credit(alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if bal.Uint64() != 100 {
		t.Errorf("balance after credit = %s, want 100", bal.Dec())
	}

	if _, err := b.Debit(alice, uint256.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := b.Get(alice); got.Uint64() != 100 {
		t.Errorf("failed debit changed balance to %s", got.Dec())
	}

	bal, err = b.Debit(alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("balance after full debit = %s, want 0", bal.Dec())
	}
	if len(b) != 0 {
		t.Errorf("zero balances should be dropped, map has %d entries", len(b))
	}
}

func TestBalancesCreditOverflow(t *testing.T) {
	b := Balances{}
	max := new(uint256.Int).SetAllOne()
	if _, err := b.Credit(alice, max); err != nil {
		t.Fatalf("credit max failed: %v", err)
	}
	if _, err := b.Credit(alice, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if !b.Get(alice).Eq(max) {
		t.Error("overflowing credit must not change the balance")
	}
}

func TestUnitsAndPercent(t *testing.T) {
	one := Units(1, 18)
	if one.Dec() != "1000000000000000000" {
		t.Errorf("Units(1, 18) = %s", one.Dec())
	}

	fee, err := Percent(one, 10)
	if err != nil {
		t.Fatalf("percent failed: %v", err)
	}
	if fee.Dec() != "100000000000000000" {
		t.Errorf("10%% of 1e18 = %s, want 1e17", fee.Dec())
	}

	// floor division
	fee, _ = Percent(uint256.NewInt(19), 10)
	if fee.Uint64() != 1 {
		t.Errorf("10%% of 19 = %d, want 1", fee.Uint64())
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("")
	if err != nil || !v.IsZero() {
		t.Errorf("empty amount = %v, %v; want 0, nil", v, err)
	}
	if _, err := ParseAmount("-1"); !errors.Is(err, ErrInvalidTransaction) {
		t.Errorf("negative amount should fail with ErrInvalidTransaction, got %v", err)
	}
	v, err = ParseAmount("2000000000000000000")
	if err != nil || !v.Eq(Units(2, 18)) {
		t.Errorf("ParseAmount(2e18) = %v, %v", v, err)
	}
}
