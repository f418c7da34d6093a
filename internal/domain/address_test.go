package domain

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
)

func testAddr(t *testing.T, b byte) Address {
	t.Helper()
	addr, err := ParseAddress(base58.Encode(bytes.Repeat([]byte{b}, 32)))
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	return addr
}

func TestParseAddress_Valid(t *testing.T) {
	raw := bytes.Repeat([]byte{0x07}, 32)
	encoded := base58.Encode(raw)

	addr, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}

	if addr.String() != encoded {
		t.Errorf("Expected %s, got %s", encoded, addr)
	}
}

func TestParseAddress_ZeroBytes(t *testing.T) {
	// 32 zero bytes encode to 32 ones
	addr, err := ParseAddress("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}

	if addr.IsZero() {
		t.Error("Expected non-empty address to report IsZero false")
	}
}

func TestParseAddress_InvalidCharacters(t *testing.T) {
	_, err := ParseAddress("not-valid-base58-0OIl")
	if err == nil {
		t.Fatal("Expected error for invalid base58, got nil")
	}
}

func TestParseAddress_WrongLength(t *testing.T) {
	short := base58.Encode(bytes.Repeat([]byte{0x07}, 16))

	_, err := ParseAddress(short)
	if err == nil {
		t.Fatal("Expected error for 16-byte address, got nil")
	}
}

func TestAddressValidate_Empty(t *testing.T) {
	if err := Address("").Validate(); err == nil {
		t.Fatal("Expected error for empty address, got nil")
	}

	if !Address("").IsZero() {
		t.Error("Expected empty address to report IsZero true")
	}
}

func TestDeriveVaultAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("owner-seed"), []byte("token-seed")}

	first, err := DeriveVaultAddress(seeds...)
	if err != nil {
		t.Fatalf("DeriveVaultAddress failed: %v", err)
	}

	second, err := DeriveVaultAddress(seeds...)
	if err != nil {
		t.Fatalf("DeriveVaultAddress failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected deterministic derivation, got %s and %s", first, second)
	}
}

func TestDeriveVaultAddress_WellFormed(t *testing.T) {
	addr, err := DeriveVaultAddress([]byte("owner-seed"), []byte("token-seed"))
	if err != nil {
		t.Fatalf("DeriveVaultAddress failed: %v", err)
	}

	if err := addr.Validate(); err != nil {
		t.Errorf("Derived address failed validation: %v", err)
	}
}

func TestDeriveVaultAddress_SeedSensitivity(t *testing.T) {
	a, err := DeriveVaultAddress([]byte("owner-a"), []byte("token"))
	if err != nil {
		t.Fatalf("DeriveVaultAddress failed: %v", err)
	}

	b, err := DeriveVaultAddress([]byte("owner-b"), []byte("token"))
	if err != nil {
		t.Fatalf("DeriveVaultAddress failed: %v", err)
	}

	if a == b {
		t.Errorf("Expected different addresses for different seeds, both %s", a)
	}
}
