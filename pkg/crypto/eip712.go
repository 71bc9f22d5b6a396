package crypto

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"
)

// EIP712Domain is the domain separator for typed-data signatures.
// Signatures from one chain id or verifying contract never verify on another.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // the exchange address
}

// ActionEIP712 is the message a wallet signs for every exchange call.
// Fields a given action type does not use stay zero.
type ActionEIP712 struct {
	Type         string
	From         common.Address
	Nonce        uint64
	Value        *uint256.Int // native currency attached to the call
	Asset        common.Address
	Amount       *uint256.Int
	AssetWanted  common.Address
	AmountWanted *uint256.Int
	OrderID      uint64
	To           common.Address
	Owner        common.Address
}

var actionTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Action": []apitypes.Type{
		{Name: "type", Type: "string"},
		{Name: "from", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "value", Type: "uint256"},
		{Name: "asset", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "assetWanted", Type: "address"},
		{Name: "amountWanted", Type: "uint256"},
		{Name: "orderId", Type: "uint256"},
		{Name: "to", Type: "address"},
		{Name: "owner", Type: "address"},
	},
}

// EIP712Signer hashes, signs and recovers actions under one domain
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the local development domain
func DefaultDomain(exchange common.Address) EIP712Domain {
	return EIP712Domain{
		Name:              "EscrowDEX",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: exchange,
	}
}

func (e *EIP712Signer) Domain() EIP712Domain { return e.domain }

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func (e *EIP712Signer) typedData(a *ActionEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       actionTypes,
		PrimaryType: "Action",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"type":         a.Type,
			"from":         a.From.Hex(),
			"nonce":        strconv.FormatUint(a.Nonce, 10),
			"value":        amountString(a.Value),
			"asset":        a.Asset.Hex(),
			"amount":       amountString(a.Amount),
			"assetWanted":  a.AssetWanted.Hex(),
			"amountWanted": amountString(a.AmountWanted),
			"orderId":      strconv.FormatUint(a.OrderID, 10),
			"to":           a.To.Hex(),
			"owner":        a.Owner.Hex(),
		},
	}
}

// HashAction returns the EIP-712 digest:
// keccak256("\x19\x01" || domainSeparator || hashStruct(action))
func (e *EIP712Signer) HashAction(a *ActionEIP712) ([]byte, error) {
	td := e.typedData(a)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(err, "hash domain")
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, errors.Wrap(err, "hash action")
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// SignAction signs a with signer's key
func (e *EIP712Signer) SignAction(signer *Signer, a *ActionEIP712) ([]byte, error) {
	hash, err := e.HashAction(a)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// RecoverActionSigner returns the address whose key produced signature over a
func (e *EIP712Signer) RecoverActionSigner(a *ActionEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashAction(a)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}

// ActionToJSON renders a as eth_signTypedData_v4 input for browser wallets
func (e *EIP712Signer) ActionToJSON(a *ActionEIP712) (string, error) {
	out, err := json.MarshalIndent(e.typedData(a), "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal typed data")
	}
	return string(out), nil
}
