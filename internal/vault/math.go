package vault

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
)

// mulDivFloor computes floor(a * b / div) with checked arithmetic.
// A zero divisor or a quotient wider than the Int bit width returns
// ErrArithmetic.
func mulDivFloor(a, b, div math.Int) (math.Int, error) {
	if div.IsZero() {
		return math.Int{}, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quo := new(big.Int).Quo(num, div.BigInt())
	if quo.BitLen() > math.MaxBitLen {
		return math.Int{}, fmt.Errorf("%w: quotient exceeds %d bits", ErrArithmetic, math.MaxBitLen)
	}
	return math.NewIntFromBigInt(quo), nil
}

// checkedAdd wraps SafeAdd into the engine's error taxonomy.
func checkedAdd(a, b math.Int) (math.Int, error) {
	sum, err := a.SafeAdd(b)
	if err != nil {
		return math.Int{}, fmt.Errorf("%w: %w", ErrArithmetic, err)
	}
	return sum, nil
}

// checkedSub wraps SafeSub into the engine's error taxonomy.
func checkedSub(a, b math.Int) (math.Int, error) {
	diff, err := a.SafeSub(b)
	if err != nil {
		return math.Int{}, fmt.Errorf("%w: %w", ErrArithmetic, err)
	}
	return diff, nil
}

// splitByWeight apportions amount across the routing legs by their
// basis-point weights, flooring each part. The flooring remainder
// stays unrouted in the vault.
func splitByWeight(amount math.Int, rt domain.RoutingTable) ([]math.Int, error) {
	parts := make([]math.Int, len(rt))
	denom := math.NewInt(domain.BpsDenominator)
	for i, leg := range rt {
		part, err := mulDivFloor(amount, math.NewInt(int64(leg.WeightBps)), denom)
		if err != nil {
			return nil, fmt.Errorf("routing leg %d: %w", i, err)
		}
		parts[i] = part
	}
	return parts, nil
}
