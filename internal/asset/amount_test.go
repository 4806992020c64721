package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dapp-marketplace/internal/asset"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return v
}

func TestAmount_Basic(t *testing.T) {
	oneETH := asset.NewAmount(asset.ETH, big.NewInt(1e18))

	if oneETH.IsZero() {
		t.Error("expected non-zero amount")
	}
	if !oneETH.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", oneETH.ToDecimal().String())
	}
	if oneETH.String() != "1 ETH" {
		t.Errorf("expected '1 ETH', got '%s'", oneETH.String())
	}
}

func TestAmount_Units(t *testing.T) {
	tests := []struct {
		name string
		wei  string
		want string
	}{
		{name: "one_ether", wei: "1000000000000000000", want: "1.0"},
		{name: "two_ether", wei: "2000000000000000000", want: "2.0"},
		{name: "fraction", wei: "1500000000000000000", want: "1.5"},
		{name: "zero", wei: "0", want: "0.0"},
		{name: "one_wei", wei: "1", want: "0.000000000000000001"},
		{name: "large", wei: "123456000000000000000000", want: "123456.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asset.NewAmount(asset.ETH, wei(tt.wei)).Units()
			if got != tt.want {
				t.Errorf("Units() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "whole", in: "1", want: "1000000000000000000"},
		{name: "decimal", in: "1.0", want: "1000000000000000000"},
		{name: "fraction", in: "0.25", want: "250000000000000000"},
		{name: "padded", in: "  2.5 ", want: "2500000000000000000"},
		{name: "min_unit", in: "0.000000000000000001", want: "1"},
		{name: "too_precise", in: "0.0000000000000000001", wantErr: asset.ErrTooManyDecimals},
		{name: "negative", in: "-1", wantErr: asset.ErrNegativeAmount},
		{name: "empty", in: "", wantErr: asset.ErrEmptyAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ParseString(asset.ETH, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Raw().Cmp(wei(tt.want)) != 0 {
				t.Errorf("got %s, want %s", got.Raw(), tt.want)
			}
		})
	}
}

func TestParseString_Garbage(t *testing.T) {
	if _, err := asset.ParseString(asset.ETH, "abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestNetworkName(t *testing.T) {
	tests := []struct {
		id   uint64
		want string
	}{
		{id: asset.ChainIDEthereum, want: "Ethereum Mainnet"},
		{id: asset.ChainIDRinkeby, want: "Rinkeby Test Network"},
		{id: 424242, want: "Unknown Network"},
	}

	for _, tt := range tests {
		if got := asset.NetworkName(tt.id); got != tt.want {
			t.Errorf("NetworkName(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
