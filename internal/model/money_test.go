package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := map[string]Money{
		"199.99": 19999,
		"0.5":    50,
		"12":     1200,
		".75":    75,
		"-5.10":  -510,
	}
	for in, want := range cases {
		got, err := ParseMoney(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseMoneyRejects(t *testing.T) {
	for _, bad := range []string{"", "1.234", "abc", "1.2.3", ".", "-"} {
		_, err := ParseMoney(bad)
		assert.ErrorIs(t, err, ErrInvalidMoney, bad)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Price Money `json:"price"`
	}{Cents(19999)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":199.99}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":10.5,"b":"3.25"}`), &in))
	assert.Equal(t, Money(1050), in.A)
	assert.Equal(t, Money(325), in.B)
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan([]byte("42.10")))
	assert.Equal(t, Money(4210), m)

	require.NoError(t, m.Scan(int64(3)))
	assert.Equal(t, Money(300), m)

	v, err := Cents(5).Value()
	require.NoError(t, err)
	assert.Equal(t, "0.05", v)
}

func TestParseMoneyBounds(t *testing.T) {
	got, err := ParseMoney("99999999.99")
	require.NoError(t, err)
	assert.Equal(t, MaxMoney, got)

	got, err = ParseMoney("-99999999.99")
	require.NoError(t, err)
	assert.Equal(t, -MaxMoney, got)

	for _, bad := range []string{"100000000", "100000000.00", "-100000000", "184467440737095517", "99999999999999999999"} {
		_, err := ParseMoney(bad)
		assert.ErrorIs(t, err, ErrInvalidMoney, bad)
	}

	var in struct {
		Amount Money `json:"amount"`
	}
	err = json.Unmarshal([]byte(`{"amount": 184467440737095517}`), &in)
	assert.ErrorIs(t, err, ErrInvalidMoney)
	assert.Zero(t, in.Amount)

	var m Money
	assert.ErrorIs(t, m.Scan(int64(1)<<62), ErrInvalidMoney)
}
