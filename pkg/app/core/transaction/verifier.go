package transaction

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

var ErrSignerMismatch = errors.New("signature does not match sender")

// Verifier handles transaction signature verification
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

// NewVerifier creates a new transaction verifier
func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// Domain is the EIP-712 domain transactions must be signed under
func (v *Verifier) Domain() crypto.EIP712Domain {
	return v.eip712Signer.Domain()
}

// Verify recovers the signer of tx and checks it is the declared sender
func (v *Verifier) Verify(tx *SignedTransaction) (common.Address, error) {
	typed, err := tx.ToEIP712()
	if err != nil {
		return common.Address{}, err
	}

	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}

	recovered, err := v.eip712Signer.RecoverMarketTxSigner(typed, sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature verification failed: %w", err)
	}
	if recovered != tx.Sender {
		return common.Address{}, fmt.Errorf("%w: recovered %s, sender %s", ErrSignerMismatch, recovered.Hex(), tx.Sender.Hex())
	}
	return recovered, nil
}

// Sign fills tx.Signature using signer. The sender must match the key.
func (v *Verifier) Sign(signer *crypto.Signer, tx *SignedTransaction) error {
	if signer.Address() != tx.Sender {
		return fmt.Errorf("%w: key %s, sender %s", ErrSignerMismatch, signer.Address().Hex(), tx.Sender.Hex())
	}
	typed, err := tx.ToEIP712()
	if err != nil {
		return err
	}
	sig, err := v.eip712Signer.SignMarketTx(signer, typed)
	if err != nil {
		return err
	}
	tx.Signature = "0x" + hex.EncodeToString(sig)
	return nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}
