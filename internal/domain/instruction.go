package domain

import (
	"cosmossdk.io/math"
)

// InstructionKind discriminates the outbound instruction envelope.
type InstructionKind string

// Instruction kind constants
const (
	KindIncreaseAllowance InstructionKind = "increase_allowance"
	KindTransfer          InstructionKind = "transfer"
	KindTransferFrom      InstructionKind = "transfer_from"
	KindSwap              InstructionKind = "swap"
)

// Instruction is one external call the host must execute after the
// vault's own state transition commits. The engine returns these in
// execution order; the host runs them in that order within the same
// transaction boundary.
type Instruction struct {
	Kind              InstructionKind    `json:"kind"`
	IncreaseAllowance *IncreaseAllowance `json:"increase_allowance,omitempty"`
	Transfer          *Transfer          `json:"transfer,omitempty"`
	TransferFrom      *TransferFrom      `json:"transfer_from,omitempty"`
	Swap              *Swap              `json:"swap,omitempty"`
}

// IncreaseAllowance grants a spender the right to pull up to Amount
// of Token from the vault.
type IncreaseAllowance struct {
	Token   Address  `json:"token"`
	Spender Address  `json:"spender"`
	Amount  math.Int `json:"amount"`
	Expiry  *int64   `json:"expiry,omitempty"` // Unix seconds; nil means never
}

// Transfer pushes Amount of Token from the vault to Recipient.
type Transfer struct {
	Token     Address  `json:"token"`
	Recipient Address  `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

// TransferFrom pulls Amount of Token from Owner to Recipient using a
// previously granted allowance.
type TransferFrom struct {
	Token     Address  `json:"token"`
	Owner     Address  `json:"owner"`
	Recipient Address  `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

// Swap trades InputAmount of one pool side for the other.
type Swap struct {
	Pool        Address       `json:"pool"`
	InputToken  TokenSelector `json:"input_token"`
	InputAmount math.Int      `json:"input_amount"`
	MinOutput   math.Int      `json:"min_output"`
	Expiry      *int64        `json:"expiry,omitempty"`
}

// NewIncreaseAllowance wraps an allowance grant in the envelope.
func NewIncreaseAllowance(token, spender Address, amount math.Int, expiry *int64) Instruction {
	return Instruction{
		Kind: KindIncreaseAllowance,
		IncreaseAllowance: &IncreaseAllowance{
			Token:   token,
			Spender: spender,
			Amount:  amount,
			Expiry:  expiry,
		},
	}
}

// NewTransfer wraps a push-transfer in the envelope.
func NewTransfer(token, recipient Address, amount math.Int) Instruction {
	return Instruction{
		Kind: KindTransfer,
		Transfer: &Transfer{
			Token:     token,
			Recipient: recipient,
			Amount:    amount,
		},
	}
}

// NewTransferFrom wraps a pull-transfer in the envelope.
func NewTransferFrom(token, owner, recipient Address, amount math.Int) Instruction {
	return Instruction{
		Kind: KindTransferFrom,
		TransferFrom: &TransferFrom{
			Token:     token,
			Owner:     owner,
			Recipient: recipient,
			Amount:    amount,
		},
	}
}

// NewSwap wraps a pool swap in the envelope. MinOutput zero means the
// caller accepts any output; slippage protection belongs to the pool
// collaborator, not this engine.
func NewSwap(pool Address, input TokenSelector, inputAmount, minOutput math.Int, expiry *int64) Instruction {
	return Instruction{
		Kind: KindSwap,
		Swap: &Swap{
			Pool:        pool,
			InputToken:  input,
			InputAmount: inputAmount,
			MinOutput:   minOutput,
			Expiry:      expiry,
		},
	}
}
