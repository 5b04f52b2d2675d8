// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// kilo is a generic multiplier for kilo units.
	kilo = 1000

	// floatStringPrecision is the number of decimal places shown for a
	// fee rate, enough to keep 1 sat/kvb from rounding to zero.
	floatStringPrecision = 3
)

// SatPerVByte is a fee rate in satoshis per virtual byte. It is kept as an
// exact fraction of satoshis per weight unit so that rates derived from a fee
// and a size do not lose precision.
type SatPerVByte struct {
	satsPerWU *big.Rat
}

// NewSatPerVByte creates a fee rate of rate sat/vb.
func NewSatPerVByte(rate btcutil.Amount) SatPerVByte {
	return CalcSatPerVByte(rate, NewVByte(1))
}

// CalcSatPerVByte returns the fee rate paid by fee for a transaction of size
// vb. A zero size yields a zero rate.
func CalcSatPerVByte(fee btcutil.Amount, vb VByte) SatPerVByte {
	if vb.wu == 0 {
		return SatPerVByte{satsPerWU: new(big.Rat)}
	}

	return SatPerVByte{satsPerWU: new(big.Rat).SetFrac(
		big.NewInt(int64(fee)), new(big.Int).SetUint64(vb.wu),
	)}
}

// FeeForVByte returns the fee for a transaction of size vb at this rate,
// rounded up to the next satoshi.
func (s SatPerVByte) FeeForVByte(vb VByte) btcutil.Amount {
	fee := new(big.Rat).Mul(
		s.rat(), new(big.Rat).SetInt(new(big.Int).SetUint64(vb.wu)),
	)

	num, denom := fee.Num(), fee.Denom()
	quo, rem := new(big.Int).QuoRem(num, denom, new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}

	return btcutil.Amount(quo.Int64())
}

// ToSatPerKVByte returns the rate in the sat/kvb unit used by relay policy.
func (s SatPerVByte) ToSatPerKVByte() btcutil.Amount {
	rate := new(big.Rat).Mul(
		s.rat(), big.NewRat(kilo*blockchain.WitnessScaleFactor, 1),
	)

	return btcutil.Amount(new(big.Int).Quo(rate.Num(), rate.Denom()).Int64())
}

// Equal returns true if both rates are identical.
func (s SatPerVByte) Equal(other SatPerVByte) bool {
	return s.rat().Cmp(other.rat()) == 0
}

// String returns the rate in sat/vb with three decimals.
func (s SatPerVByte) String() string {
	vbRate := new(big.Rat).Mul(
		s.rat(), big.NewRat(blockchain.WitnessScaleFactor, 1),
	)

	return vbRate.FloatString(floatStringPrecision) + " sat/vb"
}

// MarshalText renders the rate the way String does so that it reads the same
// in JSON and YAML reports.
func (s SatPerVByte) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s SatPerVByte) rat() *big.Rat {
	if s.satsPerWU == nil {
		return new(big.Rat)
	}

	return s.satsPerWU
}
