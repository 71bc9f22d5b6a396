package token

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
)

// Registry holds every token ledger the node knows, keyed by asset identifier
type Registry struct {
	tokens map[common.Address]*Ledger
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]*Ledger)}
}

// Register adds a token. Fails if the identifier is taken.
func (r *Registry) Register(l *Ledger) error {
	if _, exists := r.tokens[l.Address()]; exists {
		return errors.Wrapf(ledger.ErrInvalidAsset, "token %s already registered", l.Address().Hex())
	}
	r.tokens[l.Address()] = l
	return nil
}

// Get returns the token at asset, if any
func (r *Registry) Get(asset common.Address) (*Ledger, bool) {
	l, ok := r.tokens[asset]
	return l, ok
}

// List returns all tokens in address order
func (r *Registry) List() []*Ledger {
	addrs := make([]common.Address, 0, len(r.tokens))
	for a := range r.tokens {
		addrs = append(addrs, a)
	}
	ledger.SortAddresses(addrs)

	out := make([]*Ledger, len(addrs))
	for i, a := range addrs {
		out[i] = r.tokens[a]
	}
	return out
}
