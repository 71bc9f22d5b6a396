package native

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestBankTransfer(t *testing.T) {
	b := NewBank()
	if err := b.Credit(alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	if err := b.Transfer(alice, bob, uint256.NewInt(4)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if b.BalanceOf(alice).Uint64() != 6 || b.BalanceOf(bob).Uint64() != 4 {
		t.Errorf("balances = %d/%d, want 6/4", b.BalanceOf(alice).Uint64(), b.BalanceOf(bob).Uint64())
	}

	if err := b.Transfer(bob, alice, uint256.NewInt(5)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := b.Transfer(alice, common.Address{}, uint256.NewInt(1)); !errors.Is(err, ledger.ErrInvalidRecipient) {
		t.Errorf("expected ErrInvalidRecipient, got %v", err)
	}
	if b.Total().Uint64() != 10 {
		t.Errorf("total = %d, want 10", b.Total().Uint64())
	}
	if accs := b.Accounts(); len(accs) != 2 || accs[0] != alice {
		t.Errorf("Accounts() = %v", accs)
	}
}

func TestBankCreditNullAddress(t *testing.T) {
	b := NewBank()
	if err := b.Credit(common.Address{}, uint256.NewInt(1)); !errors.Is(err, ledger.ErrInvalidRecipient) {
		t.Errorf("expected ErrInvalidRecipient, got %v", err)
	}
}
