package models

import (
	"errors"
	"math"
	"strconv"
)

var ErrMoneyOverflow = errors.New("money overflow")

// Money is an amount in the smallest currency unit.
type Money int64

func (m Money) Times(qty int64) (Money, error) {
	if qty < 0 || m < 0 {
		return 0, errors.New("money: negative operand")
	}
	if qty != 0 && int64(m) > math.MaxInt64/qty {
		return 0, ErrMoneyOverflow
	}
	return Money(int64(m) * qty), nil
}

func (m Money) Add(o Money) (Money, error) {
	if o > 0 && m > math.MaxInt64-o {
		return 0, ErrMoneyOverflow
	}
	return m + o, nil
}

func (m Money) String() string {
	return strconv.FormatInt(int64(m), 10)
}
