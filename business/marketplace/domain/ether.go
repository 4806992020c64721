package domain

import (
	"errors"
	"math/big"

	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/asset"
)

// FormatEther renders wei as decimal ether with at least one fractional
// digit: 1e18 -> "1.0".
func FormatEther(wei *big.Int) string {
	if wei == nil || wei.Sign() < 0 {
		return "0.0"
	}
	return asset.NewAmount(asset.ETH, wei).Units()
}

// ParseEther converts a decimal ether string to wei.
func ParseEther(s string) (*big.Int, error) {
	amount, err := asset.ParseString(asset.ETH, s)
	if err != nil {
		msg := "invalid ether amount"
		switch {
		case errors.Is(err, asset.ErrEmptyAmount):
			msg = "price is required"
		case errors.Is(err, asset.ErrNegativeAmount):
			msg = "price cannot be negative"
		case errors.Is(err, asset.ErrTooManyDecimals):
			msg = "price has more than 18 decimals"
		}
		return nil, apperror.New(apperror.CodeInvalidAmount,
			apperror.WithCause(err),
			apperror.WithContext(msg+": "+s))
	}
	return amount.Raw(), nil
}
