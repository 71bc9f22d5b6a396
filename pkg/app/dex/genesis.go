package dex

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/escrowdex/pkg/app/core/exchange"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/token"
)

// Genesis is the initial state. The deployer creates the tokens first and
// the exchange after them, so addresses follow the deployer's nonces:
// token i at CreateAddress(deployer, i), exchange at
// CreateAddress(deployer, len(Tokens)).
type Genesis struct {
	Deployer   common.Address
	FeeAccount common.Address
	FeePercent uint64
	Tokens     []token.Metadata
	// Alloc funds native balances outside the exchange
	Alloc map[common.Address]*uint256.Int
	// GenesisTime is the timestamp of height 0 (unix seconds)
	GenesisTime int64
}

// DefaultGenesis deploys the default token and a 10% fee exchange
func DefaultGenesis(deployer, feeAccount common.Address) Genesis {
	return Genesis{
		Deployer:   deployer,
		FeeAccount: feeAccount,
		FeePercent: exchange.DefaultFeePercent,
		Tokens:     []token.Metadata{token.DefaultMetadata()},
		Alloc:      map[common.Address]*uint256.Int{},
	}
}

// ExchangeAddress is where the exchange account lives
func (g Genesis) ExchangeAddress() common.Address {
	return crypto.CreateAddress(g.Deployer, uint64(len(g.Tokens)))
}

// TokenAddresses lists the token asset ids in creation order
func (g Genesis) TokenAddresses() []common.Address {
	out := make([]common.Address, len(g.Tokens))
	for i := range g.Tokens {
		out[i] = token.AddressFor(g.Deployer, uint64(i))
	}
	return out
}

func (g Genesis) Validate() error {
	if g.Deployer == (common.Address{}) {
		return errors.New("genesis: deployer is the null address")
	}
	if g.FeeAccount == (common.Address{}) {
		return errors.New("genesis: fee account is the null address")
	}
	if g.FeePercent > 100 {
		return errors.Newf("genesis: fee percent %d out of range", g.FeePercent)
	}
	for addr := range g.Alloc {
		if ledger.IsNative(addr) {
			return errors.New("genesis: alloc to the null address")
		}
	}
	return nil
}
