// Package signer holds the process's private key and subaccount identifier
// and produces EIP-712 typed-data signatures for trade and cancel messages.
//
// The signer is stateless across calls: it never generates nonces and holds
// no mutable state. Every signed message is independent.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/etherealmm/quoter/pkg/types"
)

// domainName/domainVersion are constant for the process lifetime (spec §3).
const (
	domainName    = "Ethereal"
	domainVersion = "1"
)

// eip712Types describes the TradeOrder and CancelOrder typed-data schemas.
// Field order matches pkg/types.TradeOrder/CancelOrder exactly — it is part
// of the EIP-712 hash.
var eip712Types = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TradeOrder": {
		{Name: "sender", Type: "address"},
		{Name: "subaccount", Type: "bytes32"},
		{Name: "quantity", Type: "uint128"},
		{Name: "price", Type: "uint128"},
		{Name: "reduceOnly", Type: "bool"},
		{Name: "side", Type: "uint8"},
		{Name: "engineType", Type: "uint8"},
		{Name: "productId", Type: "uint32"},
		{Name: "nonce", Type: "uint64"},
		{Name: "signedAt", Type: "uint64"},
	},
	"CancelOrder": {
		{Name: "sender", Type: "address"},
		{Name: "subaccount", Type: "bytes32"},
		{Name: "nonce", Type: "uint64"},
	},
}

// Signer holds a private key and subaccount and signs typed-data messages.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	subaccount [32]byte
}

// ParseSubaccount decodes a 0x-prefixed 32-byte hex string into a subaccount
// identifier.
func ParseSubaccount(hex string) ([32]byte, error) {
	var out [32]byte
	b := common.FromHex(hex)
	if len(b) != 32 {
		return out, fmt.Errorf("subaccount must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// New loads a signer from a hex-encoded private key (with or without a 0x
// prefix) and a 32-byte subaccount identifier. Key loading fails synchronously
// if the byte material is invalid.
func New(privateKeyHex string, subaccount [32]byte) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		subaccount: subaccount,
	}, nil
}

// Address returns the signer's Ethereum account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// Subaccount returns the signer's 32-byte subaccount identifier.
func (s *Signer) Subaccount() [32]byte {
	return s.subaccount
}

// NewDomain builds the constant EIP-712 domain for chainID and exchange.
func NewDomain(chainID uint64, exchange common.Address) types.Domain {
	return types.Domain{
		Name:              domainName,
		Version:           domainVersion,
		ChainID:           new(big.Int).SetUint64(chainID),
		VerifyingContract: exchange,
	}
}

// SignTradeOrder signs a TradeOrder and returns the 65-byte signature.
func (s *Signer) SignTradeOrder(order types.TradeOrder, domain types.Domain) ([]byte, error) {
	message := apitypes.TypedDataMessage{
		"sender":     common.BytesToAddress(order.Sender[:]).Hex(),
		"subaccount": hexutilBytes32(order.Subaccount),
		"quantity":   order.Quantity.String(),
		"price":      order.Price.String(),
		"reduceOnly": order.ReduceOnly,
		"side":       fmt.Sprintf("%d", order.Side),
		"engineType": fmt.Sprintf("%d", order.EngineType),
		"productId":  fmt.Sprintf("%d", order.ProductID),
		"nonce":      fmt.Sprintf("%d", order.Nonce),
		"signedAt":   fmt.Sprintf("%d", order.SignedAt),
	}

	return s.signTypedData(domain, message, "TradeOrder")
}

// SignCancelOrder signs a CancelOrder and returns the 65-byte signature.
func (s *Signer) SignCancelOrder(order types.CancelOrder, domain types.Domain) ([]byte, error) {
	message := apitypes.TypedDataMessage{
		"sender":     common.BytesToAddress(order.Sender[:]).Hex(),
		"subaccount": hexutilBytes32(order.Subaccount),
		"nonce":      fmt.Sprintf("%d", order.Nonce),
	}

	return s.signTypedData(domain, message, "CancelOrder")
}

// signTypedData signs EIP-712 typed data and adjusts V to 27/28.
func (s *Signer) signTypedData(
	domain types.Domain,
	message apitypes.TypedDataMessage,
	primaryType string,
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       eip712Types,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(domain.ChainID)),
			VerifyingContract: common.BytesToAddress(domain.VerifyingContract[:]).Hex(),
		},
		Message: message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func hexutilBytes32(b [32]byte) string {
	return "0x" + common.Bytes2Hex(b[:])
}
