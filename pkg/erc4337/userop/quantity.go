package userop

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrInvalidQuantity  = errors.New("invalid hex quantity")
)

// EncodeQuantity renders an unsigned integer as a 0x prefixed hex quantity.
func EncodeQuantity(v *big.Int) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: nil", ErrInvalidQuantity)
	}
	if v.Sign() < 0 {
		return "", ErrNegativeQuantity
	}
	return hexutil.EncodeBig(v), nil
}

// DecodeQuantity parses a 0x prefixed hex quantity of any width. Unlike
// hexutil.DecodeBig it accepts zero padded values and numbers above 256 bits,
// both of which show up in paymaster responses.
func DecodeQuantity(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("%w: %q missing 0x prefix", ErrInvalidQuantity, s)
	}
	digits := s[2:]
	if digits == "" || digits[0] == '-' || digits[0] == '+' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	return v, nil
}
