package transaction

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/crypto"
)

// Verifier checks transaction signatures against one EIP-712 domain
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// Verify recovers the signer and requires it to match Action.From.
// Every failure wraps ledger.ErrInvalidTransaction.
func (v *Verifier) Verify(tx *SignedTransaction) (common.Address, error) {
	if err := tx.Action.Validate(); err != nil {
		return common.Address{}, err
	}
	sig, err := crypto.DecodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, errors.Wrapf(ledger.ErrInvalidTransaction, "signature: %v", err)
	}
	signer, err := v.eip712Signer.RecoverActionSigner(tx.Action.ToEIP712(), sig)
	if err != nil {
		return common.Address{}, errors.Wrapf(ledger.ErrInvalidTransaction, "recover signer: %v", err)
	}
	if signer != tx.Action.From {
		return common.Address{}, errors.Wrapf(ledger.ErrInvalidTransaction,
			"signed by %s, claims %s", signer.Hex(), tx.Action.From.Hex())
	}
	return signer, nil
}
