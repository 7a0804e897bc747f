package asset

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	cw20Addr = common.HexToAddress("0x000000000000000000000000000000000000c020")
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Asset
		want bool
	}{
		{"same native", Native("uluna", 10), Native("uluna", 10), true},
		{"different amount", Native("uluna", 10), Native("uluna", 11), false},
		{"different denom", Native("uluna", 10), Native("uusd", 10), false},
		{"native vs token", Native("uluna", 10), FromToken(cw20Addr, 10), false},
		{"same token", FromToken(cw20Addr, 7), FromToken(cw20Addr, 7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInstruction(t *testing.T) {
	ins := Native("uluna", 500).Instruction(alice)
	send, ok := ins.(BankSend)
	if !ok {
		t.Fatalf("expected BankSend, got %T", ins)
	}
	if send.To != alice || send.Denom != "uluna" || send.Amount.Uint64() != 500 {
		t.Errorf("unexpected bank send: %+v", send)
	}

	ins = FromToken(cw20Addr, 3).Instruction(alice)
	transfer, ok := ins.(TokenTransfer)
	if !ok {
		t.Fatalf("expected TokenTransfer, got %T", ins)
	}
	if transfer.Contract != cw20Addr || transfer.To != alice || transfer.Amount.Uint64() != 3 {
		t.Errorf("unexpected token transfer: %+v", transfer)
	}
}

func TestInstructionCopiesAmount(t *testing.T) {
	a := Native("uluna", 500)
	send := a.Instruction(alice).(BankSend)
	a.Amount.SetUint64(1)
	if send.Amount.Uint64() != 500 {
		t.Errorf("instruction amount aliased the asset: %s", send.Amount.Dec())
	}
}

func TestAssertSentNativeAmount(t *testing.T) {
	tests := []struct {
		name    string
		asset   Asset
		funds   []Asset
		wantErr bool
	}{
		{"exact", Native("uluna", 100), []Asset{Native("uluna", 100)}, false},
		{"short", Native("uluna", 100), []Asset{Native("uluna", 99)}, true},
		{"over", Native("uluna", 100), []Asset{Native("uluna", 101)}, true},
		{"missing", Native("uluna", 100), nil, true},
		{"missing zero", Native("uluna", 0), nil, false},
		{"other denom only", Native("uluna", 100), []Asset{Native("uusd", 100)}, true},
		{"alongside other denom", Native("uluna", 100), []Asset{Native("uusd", 5), Native("uluna", 100)}, false},
		{"token is no-op", FromToken(cw20Addr, 100), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.asset.AssertSentNativeAmount(tt.funds)
			if tt.wantErr {
				if !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("expected ErrInsufficientFunds, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestJSONWireForm(t *testing.T) {
	data, err := json.Marshal(Native("uluna", 10000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"info":{"native_token":{"denom":"uluna"}},"amount":"10000"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var decoded Asset
	raw := `{"info":{"token":{"contract_addr":"0x000000000000000000000000000000000000c020"}},"amount":"115792089237316195423570985008687907853269984665640564039457584007913129639935"}`
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !SameInfo(decoded.Info, Token{Contract: cw20Addr}) {
		t.Errorf("unexpected info: %v", decoded.Info)
	}
	max := new(uint256.Int).SetAllOne()
	if !decoded.Amount.Eq(max) {
		t.Errorf("unexpected amount: %s", decoded.Amount.Dec())
	}
}

func TestJSONRejectsBadInput(t *testing.T) {
	cases := []string{
		`{"info":{},"amount":"1"}`,
		`{"info":{"native_token":{"denom":""}},"amount":"1"}`,
		`{"info":{"native_token":{"denom":"uluna"}},"amount":"-1"}`,
		`{"info":{"native_token":{"denom":"uluna"}},"amount":""}`,
		`{"info":{"native_token":{"denom":"uluna"},"token":{"contract_addr":"0x01"}},"amount":"1"}`,
	}
	for _, raw := range cases {
		var a Asset
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}
