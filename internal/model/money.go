package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMoney is returned when a decimal amount cannot be represented
// in whole cents.
var ErrInvalidMoney = errors.New("invalid money amount")

// Money is an amount in cents.  It is persisted as DECIMAL(10,2) and
// rendered in JSON as a number with exactly two fractional digits, so
// 19999 travels as 199.99.
type Money int64

// MaxMoney is the largest amount a DECIMAL(10,2) column holds,
// 99999999.99.  ParseMoney rejects anything beyond it in either sign.
const MaxMoney Money = 9_999_999_999

// maxWholeUnits is the integer part of MaxMoney.
const maxWholeUnits = int64(MaxMoney) / 100

// Cents builds a Money value from a whole number of cents.
func Cents(n int64) Money { return Money(n) }

// ParseMoney parses a decimal string such as "199.99", "-5" or "0.5".
// More than two fractional digits are rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, ErrInvalidMoney
	}
	if len(frac) > 2 || !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > maxWholeUnits {
			return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidMoney, s, MaxMoney)
		}
		units = n
	}
	for len(frac) < 2 {
		frac += "0"
	}
	c, _ := strconv.ParseInt(frac, 10, 64)
	total := units*100 + c
	if neg {
		total = -total
	}
	return Money(total), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String formats the amount as a plain decimal with two fractional digits.
func (m Money) String() string {
	n := int64(m)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

// MarshalJSON renders the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalJSON accepts both a JSON number and a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Value implements driver.Valuer for DECIMAL columns.
func (m Money) Value() (driver.Value, error) { return m.String(), nil }

// Scan implements sql.Scanner.  The MySQL driver hands DECIMAL values over
// as []byte.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		p, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = p
		return nil
	case string:
		p, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = p
		return nil
	case int64:
		if v > maxWholeUnits || v < -maxWholeUnits {
			return fmt.Errorf("%w: %d exceeds %s", ErrInvalidMoney, v, MaxMoney)
		}
		*m = Money(v * 100)
		return nil
	case float64:
		p, err := ParseMoney(strconv.FormatFloat(v, 'f', 2, 64))
		if err != nil {
			return err
		}
		*m = p
		return nil
	}
	return fmt.Errorf("money: unsupported scan type %T", src)
}
