package domain

import (
	"testing"
)

func validLeg(t *testing.T, pool, receipt byte, weight int) RoutingLeg {
	t.Helper()
	return RoutingLeg{
		Pool:          testAddr(t, pool),
		ReceiptToken:  testAddr(t, receipt),
		WeightBps:     weight,
		DepositInput:  SelectToken1,
		WithdrawInput: SelectToken2,
	}
}

func TestTokenSelectorValidate(t *testing.T) {
	if err := SelectToken1.Validate(); err != nil {
		t.Errorf("token1 failed validation: %v", err)
	}
	if err := SelectToken2.Validate(); err != nil {
		t.Errorf("token2 failed validation: %v", err)
	}
	if err := TokenSelector("token3").Validate(); err == nil {
		t.Error("Expected error for unknown selector, got nil")
	}
}

func TestRoutingLegValidate(t *testing.T) {
	leg := validLeg(t, 0x0A, 0x0B, 5000)
	if err := leg.Validate(); err != nil {
		t.Fatalf("valid leg failed validation: %v", err)
	}

	bad := leg
	bad.Pool = "garbage"
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for bad pool address, got nil")
	}

	bad = leg
	bad.WeightBps = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero weight, got nil")
	}

	bad = leg
	bad.WeightBps = BpsDenominator + 1
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for weight above denominator, got nil")
	}

	bad = leg
	bad.DepositInput = "both"
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for unknown deposit input, got nil")
	}
}

func TestRoutingTableValidate(t *testing.T) {
	var empty RoutingTable
	if err := empty.Validate(); err != nil {
		t.Errorf("empty table failed validation: %v", err)
	}

	good := RoutingTable{
		validLeg(t, 0x0A, 0x0B, 6000),
		validLeg(t, 0x0C, 0x0D, 4000),
	}
	if err := good.Validate(); err != nil {
		t.Errorf("valid table failed validation: %v", err)
	}

	short := RoutingTable{
		validLeg(t, 0x0A, 0x0B, 4000),
		validLeg(t, 0x0C, 0x0D, 4000),
	}
	if err := short.Validate(); err == nil {
		t.Error("Expected error for weights summing below denominator, got nil")
	}
}

func TestTwoPoolRouting(t *testing.T) {
	poolA, receiptA := testAddr(t, 0x0A), testAddr(t, 0x0B)
	poolB, receiptB := testAddr(t, 0x0C), testAddr(t, 0x0D)

	rt := TwoPoolRouting(poolA, receiptA, poolB, receiptB)

	if err := rt.Validate(); err != nil {
		t.Fatalf("two-pool table failed validation: %v", err)
	}

	if len(rt) != 2 {
		t.Fatalf("Expected 2 legs, got %d", len(rt))
	}

	if rt[0].WeightBps != 5000 || rt[1].WeightBps != 5000 {
		t.Errorf("Expected even 5000/5000 split, got %d/%d", rt[0].WeightBps, rt[1].WeightBps)
	}

	if rt[0].DepositInput != SelectToken1 || rt[0].WithdrawInput != SelectToken2 {
		t.Errorf("Expected token1 in, token2 out, got %s/%s", rt[0].DepositInput, rt[0].WithdrawInput)
	}
}

func TestVaultConfigValidate(t *testing.T) {
	cfg := &VaultConfig{
		VaultAddress:    testAddr(t, 0x01),
		Owner:           testAddr(t, 0x02),
		UnderlyingToken: testAddr(t, 0x03),
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config failed validation: %v", err)
	}

	if cfg.MultiPool() {
		t.Error("Expected single-pool config without routing")
	}

	cfg.Routing = TwoPoolRouting(testAddr(t, 0x0A), testAddr(t, 0x0B), testAddr(t, 0x0C), testAddr(t, 0x0D))
	if !cfg.MultiPool() {
		t.Error("Expected multi-pool config with routing")
	}

	cfg.Owner = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for missing owner, got nil")
	}
}
