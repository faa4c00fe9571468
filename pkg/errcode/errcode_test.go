package errcode

import (
	"errors"
	"testing"
)

func TestCodeValues(t *testing.T) {
	// The numeric values are a client compatibility contract.
	tests := []struct {
		code Code
		want int
	}{
		{InvalidMint, 6000},
		{InvalidCollector, 6001},
		{InvalidAuthority, 6002},
		{InvalidMintManager, 6003},
		{InvalidHolderTokenAccount, 6004},
		{InvalidTargetTokenAccount, 6005},
		{InvalidCloseTokenAccount, 6006},
		{InvalidRuleset, 6007},
		{InvalidPreTransferInstruction, 6008},
		{InvalidPostTransferInstruction, 6009},
		{ProgramDisallowed, 6010},
		{ProgramNotAllowed, 6011},
		{UnknownAccount, 6012},
		{AccountNotFound, 6013},
	}

	for _, tt := range tests {
		if int(tt.code) != tt.want {
			t.Errorf("code %s = %d, want %d", tt.code.Message(), int(tt.code), tt.want)
		}
	}
}

func TestCodeMessages(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{InvalidMint, "Invalid mint"},
		{InvalidCollector, "Invalid collector address"},
		{ProgramDisallowed, "Disallowed program included in transfer"},
		{ProgramNotAllowed, "Program not allowed in allowed programs to transfer"},
		{UnknownAccount, "Unknown account found in instruction"},
		{AccountNotFound, "Account not found in instruction"},
	}

	for _, tt := range tests {
		if got := tt.code.Message(); got != tt.want {
			t.Errorf("Message(%d) = %q, want %q", int(tt.code), got, tt.want)
		}
	}
}

func TestWrapPreservesCode(t *testing.T) {
	err := Wrap(InvalidAuthority, "update_ruleset", "signer mismatch")

	if !errors.Is(err, InvalidAuthority) {
		t.Errorf("errors.Is(err, InvalidAuthority) = false, want true")
	}

	var wrapped *Wrapped
	if !errors.As(err, &wrapped) {
		t.Fatalf("errors.As(err, *Wrapped) = false, want true")
	}

	if wrapped.Op != "update_ruleset" {
		t.Errorf("wrapped.Op = %q, want %q", wrapped.Op, "update_ruleset")
	}
}
