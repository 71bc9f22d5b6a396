package crypto

import (
	bls "github.com/cloudflare/circl/sign/bls"
	"github.com/cockroachdb/errors"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]
type BLSSignature = []byte

// BLSSigner is the sequencer's block-signing key. Peers verify announced
// block headers against its public key.
type BLSSigner struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

// NewBLSSignerFromSeed derives a key from seed, which must be at least 32 bytes
func NewBLSSignerFromSeed(seed []byte) (*BLSSigner, error) {
	sk, err := bls.KeyGen[scheme](seed, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "bls keygen")
	}
	return &BLSSigner{sk: sk, pk: sk.PublicKey()}, nil
}

func (s *BLSSigner) Pubkey() *BLSPubKey { return s.pk }

// PubkeyBytes is the compressed public key, for config and logs
func (s *BLSSigner) PubkeyBytes() ([]byte, error) { return s.pk.MarshalBinary() }

func (s *BLSSigner) Sign(msg []byte) BLSSignature {
	return bls.Sign(s.sk, msg)
}

func ParseBLSPubKey(b []byte) (*BLSPubKey, error) {
	pk := new(BLSPubKey)
	if err := pk.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrap(err, "parse bls public key")
	}
	return pk, nil
}

func VerifyBLS(pk *BLSPubKey, sig BLSSignature, msg []byte) bool {
	if pk == nil || len(sig) == 0 {
		return false
	}
	return bls.Verify(pk, msg, bls.Signature(sig))
}
