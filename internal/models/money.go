package models

import (
	"fmt"
	"math/big"
	"strings"
)

// Money is an amount in minor units (cents). It travels as a JSON number with
// two decimals and is stored as a bigint.
type Money int64

// ParseMoney parses a decimal string with at most two fractional digits.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	if !r.Num().IsInt64() {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	return Money(r.Num().Int64()), nil
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = 0
		return nil
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
