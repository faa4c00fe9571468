// Package royalty computes dynamic, price-dependent royalty obligations
// for policy-governed transfers. A schedule is either a flat override or a
// linear-by-price interpolation between two basis-point multipliers,
// clamped at the price bounds.
package royalty

import (
	"errors"
	"fmt"
	"math/big"
)

// Kind discriminants. Future kinds are reserved; unknown kinds are
// rejected at construction time.
const (
	KindPriceLinear uint8 = 0
)

// MaxBp is 100% expressed in basis points.
const MaxBp uint16 = 10000

// ErrInvalidSchedule indicates a schedule that fails construction-time
// validation.
var ErrInvalidSchedule = errors.New("invalid royalty schedule")

// PriceLinear interpolates a basis-point multiplier linearly in price
// between (StartPrice, StartMultiplierBp) and (EndPrice, EndMultiplierBp).
// Decreasing multiplier schedules (start > end) are valid and interpolate
// downward; price bounds must be ascending.
type PriceLinear struct {
	StartPrice        uint64 `yaml:"start_price" json:"start_price"`
	EndPrice          uint64 `yaml:"end_price" json:"end_price"`
	StartMultiplierBp uint16 `yaml:"start_multiplier_bp" json:"start_multiplier_bp"`
	EndMultiplierBp   uint16 `yaml:"end_multiplier_bp" json:"end_multiplier_bp"`
}

// Schedule is a versioned dynamic royalty record. Reserved bytes pad the
// persisted layout for forward-compatible upgrades.
type Schedule struct {
	Version           uint8        `yaml:"version" json:"version"`
	Kind              uint8        `yaml:"kind" json:"kind"`
	OverrideRoyaltyBp *uint16      `yaml:"override_royalty_bp,omitempty" json:"override_royalty_bp,omitempty"`
	PriceLinear       *PriceLinear `yaml:"price_linear,omitempty" json:"price_linear,omitempty"`
	Reserved          [64]byte     `yaml:"-" json:"-"`
}

// Validate checks the schedule at construction time. Multipliers and the
// override are basis points in [0, 10000]; price bounds must not be
// inverted; the kind must be known.
func (s *Schedule) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: schedule cannot be nil", ErrInvalidSchedule)
	}

	if s.OverrideRoyaltyBp != nil && *s.OverrideRoyaltyBp > MaxBp {
		return fmt.Errorf("%w: override %d bp exceeds %d", ErrInvalidSchedule, *s.OverrideRoyaltyBp, MaxBp)
	}

	switch s.Kind {
	case KindPriceLinear:
		pl := s.PriceLinear
		if pl == nil {
			return fmt.Errorf("%w: price_linear must be set for the linear-by-price kind", ErrInvalidSchedule)
		}
		if pl.StartPrice > pl.EndPrice {
			return fmt.Errorf("%w: start_price %d exceeds end_price %d", ErrInvalidSchedule, pl.StartPrice, pl.EndPrice)
		}
		if pl.StartMultiplierBp > MaxBp {
			return fmt.Errorf("%w: start_multiplier_bp %d exceeds %d", ErrInvalidSchedule, pl.StartMultiplierBp, MaxBp)
		}
		if pl.EndMultiplierBp > MaxBp {
			return fmt.Errorf("%w: end_multiplier_bp %d exceeds %d", ErrInvalidSchedule, pl.EndMultiplierBp, MaxBp)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidSchedule, s.Kind)
	}
}

// ComputeFeeBp returns the royalty in basis points for a sale at
// currentPrice. If the override is set it is returned directly, ignoring
// kind and price. Otherwise the price is clamped to the schedule bounds
// and the multiplier interpolated linearly. Given a schedule that passed
// Validate, the result is always in [0, 10000].
func (s *Schedule) ComputeFeeBp(currentPrice uint64) uint16 {
	if s == nil {
		return 0
	}
	if s.OverrideRoyaltyBp != nil {
		return *s.OverrideRoyaltyBp
	}
	if s.Kind != KindPriceLinear || s.PriceLinear == nil {
		return 0
	}
	return s.PriceLinear.multiplierBp(currentPrice)
}

// ApplyTo composes the schedule with a base royalty taken from the mint's
// metadata: the interpolated multiplier scales baseBp, capped at 100%.
// With the override set, the override replaces baseBp entirely.
func (s *Schedule) ApplyTo(currentPrice uint64, baseBp uint16) uint16 {
	if s == nil {
		return baseBp
	}

	bp := baseBp
	if s.OverrideRoyaltyBp != nil {
		bp = *s.OverrideRoyaltyBp
	}

	if s.Kind != KindPriceLinear || s.PriceLinear == nil {
		return bp
	}
	return safeMulBp(s.PriceLinear.multiplierBp(currentPrice), bp)
}

// multiplierBp interpolates the basis-point multiplier at price, clamped
// at the bounds.
func (pl *PriceLinear) multiplierBp(price uint64) uint16 {
	if price <= pl.StartPrice {
		return pl.StartMultiplierBp
	}
	if price >= pl.EndPrice {
		return pl.EndMultiplierBp
	}
	// EndPrice == StartPrice is fully covered by the clamps above, so the
	// division below cannot see a zero denominator.

	// multiplier = y1 + (y2 - y1) * (p - x1) / (x2 - x1), evaluated in
	// arbitrary precision: the (y2-y1)*(p-x1) product can exceed 64 bits
	// for full-range prices.
	y1 := new(big.Int).SetUint64(uint64(pl.StartMultiplierBp))
	y := new(big.Int).Sub(new(big.Int).SetUint64(uint64(pl.EndMultiplierBp)), y1)
	d := new(big.Int).SetUint64(price - pl.StartPrice)
	x := new(big.Int).SetUint64(pl.EndPrice - pl.StartPrice)

	m := new(big.Int).Add(y1, new(big.Int).Quo(new(big.Int).Mul(y, d), x))

	switch {
	case m.Sign() < 0:
		return 0
	case !m.IsUint64() || m.Uint64() > uint64(MaxBp):
		return MaxBp
	default:
		return uint16(m.Uint64())
	}
}

// safeMulBp scales bp by a basis-point multiplier, capping at 100%.
func safeMulBp(multiplierBp, bp uint16) uint16 {
	ret := uint32(multiplierBp) * uint32(bp) / 10000
	if ret > uint32(MaxBp) {
		return MaxBp
	}
	return uint16(ret)
}
