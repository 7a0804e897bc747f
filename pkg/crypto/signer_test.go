package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

// hardhat account #0, a well known public devnet key
const (
	devnetKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devnetAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}
	if n := len(signer.PrivateKeyHex()); n != 64 {
		t.Errorf("private key hex length = %d, want 64", n)
	}
	// 04 prefix + 64 bytes uncompressed
	if n := len(signer.PublicKeyHex()); n != 130 {
		t.Errorf("public key hex length = %d, want 130", n)
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"bare", devnetKey, true},
		{"prefixed", "0x" + devnetKey, true},
		{"padded", "  0x" + devnetKey + "\n", true},
		{"not hex", "0xnothex", false},
		{"short", devnetKey[:62], false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := FromPrivateKeyHex(tt.input)
			if !tt.ok {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromPrivateKeyHex: %v", err)
			}
			if got := signer.Address().Hex(); got != devnetAddr {
				t.Errorf("address = %s, want %s", got, devnetAddr)
			}
			if signer.PrivateKeyHex() != devnetKey {
				t.Error("private key does not round trip")
			}
		})
	}
}

func TestSignVerifyRecover(t *testing.T) {
	signer, err := FromPrivateKeyHex(devnetKey)
	if err != nil {
		t.Fatal(err)
	}
	message := []byte(`{"create_order":{"token_id":"1"}}`)
	hash := eth_crypto.Keccak256Hash(message).Bytes()

	signature, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != 65 {
		t.Fatalf("signature length = %d, want 65", len(signature))
	}
	if v := signature[64]; v > 1 {
		t.Errorf("recovery id = %d, want 0 or 1", v)
	}

	if !VerifySignature(signer.Address(), hash, signature) {
		t.Error("signature verification failed")
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if VerifySignature(other, hash, signature) {
		t.Error("signature verified for another address")
	}
	tampered := eth_crypto.Keccak256Hash([]byte(`{"create_order":{"token_id":"2"}}`)).Bytes()
	if VerifySignature(signer.Address(), tampered, signature) {
		t.Error("signature verified for another message")
	}
}

func TestVerifySignatureRejectsMalformed(t *testing.T) {
	addr := common.HexToAddress(devnetAddr)
	hash := eth_crypto.Keccak256([]byte("tx"))

	for name, tc := range map[string]struct{ hash, sig []byte }{
		"short signature": {hash, []byte{1, 2, 3}},
		"short hash":      {[]byte("short"), make([]byte, 65)},
		"zero signature":  {hash, make([]byte, 65)},
	} {
		if VerifySignature(addr, tc.hash, tc.sig) {
			t.Errorf("%s: verified", name)
		}
		if _, err := RecoverAddress(tc.hash, tc.sig); err == nil {
			t.Errorf("%s: recovered an address", name)
		}
	}
}
