package vault

import (
	"encoding/json"
	"testing"

	"cosmossdk.io/math"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"pooled-vault/internal/domain"
)

// Golden files pin the exact wire shape and ordering of emitted
// instruction sequences. Addresses are plain labels; identity
// validation happens in the engine, not the builders.

func goldenConfig(multiPool bool) *domain.VaultConfig {
	cfg := &domain.VaultConfig{
		VaultAddress:    "vault",
		Owner:           "owner",
		UnderlyingToken: "underlying",
	}
	if multiPool {
		cfg.Routing = domain.TwoPoolRouting("pool-a", "receipt-a", "pool-b", "receipt-b")
	}
	return cfg
}

func assertGolden(t *testing.T, name string, instructions []domain.Instruction) {
	t.Helper()

	raw, err := json.MarshalIndent(instructions, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, raw)
}

func TestDepositInstructions_SinglePoolGolden(t *testing.T) {
	instructions, err := buildDepositInstructions(goldenConfig(false), "depositor", math.NewInt(100))
	require.NoError(t, err)

	assertGolden(t, "deposit_single_pool", instructions)
}

func TestDepositInstructions_TwoPoolGolden(t *testing.T) {
	instructions, err := buildDepositInstructions(goldenConfig(true), "depositor", math.NewInt(100))
	require.NoError(t, err)

	assertGolden(t, "deposit_two_pool", instructions)
}

func TestWithdrawInstructions_SinglePoolGolden(t *testing.T) {
	instructions, err := buildWithdrawInstructions(goldenConfig(false), "holder", math.NewInt(40), math.NewInt(40), math.NewInt(100), nil)
	require.NoError(t, err)

	assertGolden(t, "withdraw_single_pool", instructions)
}

func TestWithdrawInstructions_TwoPoolGolden(t *testing.T) {
	cfg := goldenConfig(true)
	holdings := []legHolding{
		{leg: cfg.Routing[0], balance: math.NewInt(50), value: math.NewInt(50)},
		{leg: cfg.Routing[1], balance: math.NewInt(50), value: math.NewInt(50)},
	}

	instructions, err := buildWithdrawInstructions(cfg, "holder", math.NewInt(50), math.NewInt(50), math.NewInt(100), holdings)
	require.NoError(t, err)

	assertGolden(t, "withdraw_two_pool", instructions)
}
