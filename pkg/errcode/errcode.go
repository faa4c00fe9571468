package errcode

import "fmt"

// Code is a stable numeric error code surfaced verbatim to callers.
// The numeric values and messages are part of the wire contract with
// existing clients and must never be renumbered or reworded.
type Code int

const (
	// Identity mismatches.
	InvalidMint              Code = 6000
	InvalidCollector         Code = 6001
	InvalidAuthority         Code = 6002
	InvalidMintManager       Code = 6003
	InvalidHolderTokenAccount Code = 6004
	InvalidTargetTokenAccount Code = 6005
	InvalidCloseTokenAccount Code = 6006
	InvalidRuleset           Code = 6007

	// Protocol-ordering violations.
	InvalidPreTransferInstruction  Code = 6008
	InvalidPostTransferInstruction Code = 6009

	// Policy violations.
	ProgramDisallowed Code = 6010
	ProgramNotAllowed Code = 6011

	// Resolution failures.
	UnknownAccount  Code = 6012
	AccountNotFound Code = 6013
)

var messages = map[Code]string{
	InvalidMint:                    "Invalid mint",
	InvalidCollector:               "Invalid collector address",
	InvalidAuthority:               "Invalid authority address",
	InvalidMintManager:             "Invalid mint manager",
	InvalidHolderTokenAccount:      "Invalid holder token account",
	InvalidTargetTokenAccount:      "Invalid target token account",
	InvalidCloseTokenAccount:       "Invalid token account to close",
	InvalidRuleset:                 "Invalid ruleset",
	InvalidPreTransferInstruction:  "Invalid pre transfer instruction",
	InvalidPostTransferInstruction: "Invalid post transfer instruction",
	ProgramDisallowed:              "Disallowed program included in transfer",
	ProgramNotAllowed:              "Program not allowed in allowed programs to transfer",
	UnknownAccount:                 "Unknown account found in instruction",
	AccountNotFound:                "Account not found in instruction",
}

// Error implements the error interface. Codes are usable directly as
// sentinel errors with errors.Is.
func (c Code) Error() string {
	if msg, ok := messages[c]; ok {
		return fmt.Sprintf("%d: %s", int(c), msg)
	}
	return fmt.Sprintf("%d: unknown error code", int(c))
}

// Message returns the client-facing message without the numeric prefix.
func (c Code) Message() string {
	return messages[c]
}

// Wrapped attaches operation context to a code while keeping the code
// reachable through errors.Is/errors.As.
type Wrapped struct {
	Code    Code
	Op      string
	Details string
}

// Error returns the error message.
func (w *Wrapped) Error() string {
	if w.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", w.Op, w.Code, w.Details)
	}
	return fmt.Sprintf("%s: %v", w.Op, w.Code)
}

// Unwrap returns the underlying code.
func (w *Wrapped) Unwrap() error {
	return w.Code
}

// Wrap builds a Wrapped error for an operation.
func Wrap(code Code, op string, details string) error {
	return &Wrapped{Code: code, Op: op, Details: details}
}
