package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/contracts
type EIP712Domain struct {
	Name              string         // Protocol name (e.g., "HyperMarket")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local)
	VerifyingContract common.Address // Marketplace module address
}

// MarketTxEIP712 is the typed data a wallet signs for one marketplace
// invocation. Msg and Funds are the canonical JSON of the execute message
// and the attached funds, so the wallet shows exactly what is submitted.
type MarketTxEIP712 struct {
	Sender common.Address
	Nonce  *big.Int
	Msg    string
	Funds  string
}

// EIP712Signer hashes and signs marketplace transactions under a domain
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) Domain() EIP712Domain { return e.domain }

// DefaultDomain returns the devnet domain for the given chain id
func DefaultDomain(chainID int64) EIP712Domain {
	return EIP712Domain{
		Name:              "HyperMarket",
		Version:           "1",
		ChainID:           big.NewInt(chainID),
		VerifyingContract: common.Address{}, // Zero address for off-chain signing
	}
}

var marketTxTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"MarketTx": []apitypes.Type{
		{Name: "sender", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "msg", Type: "string"},
		{Name: "funds", Type: "string"},
	},
}

func (e *EIP712Signer) typedData(tx *MarketTxEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       marketTxTypes,
		PrimaryType: "MarketTx",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sender": tx.Sender.Hex(),
			"nonce":  tx.Nonce.String(),
			"msg":    tx.Msg,
			"funds":  tx.Funds,
		},
	}
}

// HashMarketTx returns the EIP-712 digest that should be signed
func (e *EIP712Signer) HashMarketTx(tx *MarketTxEIP712) ([]byte, error) {
	if tx.Nonce == nil {
		return nil, fmt.Errorf("missing nonce")
	}
	typedData := e.typedData(tx)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignMarketTx signs tx with signer
func (e *EIP712Signer) SignMarketTx(signer *Signer, tx *MarketTxEIP712) ([]byte, error) {
	hash, err := e.HashMarketTx(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to hash tx: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	return signature, nil
}

// RecoverMarketTxSigner recovers the address that signed tx
func (e *EIP712Signer) RecoverMarketTxSigner(tx *MarketTxEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashMarketTx(tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash tx: %w", err)
	}
	return RecoverAddress(hash, signature)
}

// MarketTxToJSON renders tx for eth_signTypedData_v4
func (e *EIP712Signer) MarketTxToJSON(tx *MarketTxEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"MarketTx": []map[string]string{
				{"name": "sender", "type": "address"},
				{"name": "nonce", "type": "uint256"},
				{"name": "msg", "type": "string"},
				{"name": "funds", "type": "string"},
			},
		},
		"primaryType": "MarketTx",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"sender": tx.Sender.Hex(),
			"nonce":  tx.Nonce.String(),
			"msg":    tx.Msg,
			"funds":  tx.Funds,
		},
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}
