package crypto

import (
	"crypto/sha256"
	"fmt"

	bls "github.com/cloudflare/circl/sign/bls"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]
type BLSSignature = []byte

// BLSSigner signs block certificates
type BLSSigner struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

// NewBLSSignerFromSeed derives a key from seed (at least 32 bytes)
func NewBLSSignerFromSeed(seed []byte) (*BLSSigner, error) {
	sk, err := bls.KeyGen[scheme](seed, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("bls keygen: %w", err)
	}
	return &BLSSigner{sk: sk, pk: sk.PublicKey()}, nil
}

// NewBLSSignerFromPhrase stretches an operator-supplied phrase into a seed.
// Devnet only: anyone who knows the phrase can sign certificates.
func NewBLSSignerFromPhrase(phrase string) (*BLSSigner, error) {
	seed := sha256.Sum256([]byte("hypermarket/bls/" + phrase))
	return NewBLSSignerFromSeed(seed[:])
}

func (s *BLSSigner) Pubkey() *BLSPubKey { return s.pk }

func (s *BLSSigner) Sign(msg []byte) []byte {
	return bls.Sign(s.sk, msg)
}

func Verify(pk *BLSPubKey, sigBytes, msg []byte) bool {
	if pk == nil || len(sigBytes) == 0 {
		return false
	}
	return bls.Verify(pk, msg, bls.Signature(sigBytes))
}

// MarshalBLSPubKey encodes a public key for configuration files
func MarshalBLSPubKey(pk *BLSPubKey) ([]byte, error) {
	return pk.MarshalBinary()
}

// ParseBLSPubKey decodes a key produced by MarshalBLSPubKey
func ParseBLSPubKey(data []byte) (*BLSPubKey, error) {
	pk := new(BLSPubKey)
	if err := pk.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("parse bls pubkey: %w", err)
	}
	return pk, nil
}
