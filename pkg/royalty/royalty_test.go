package royalty

import (
	"errors"
	"testing"
)

func uint16p(v uint16) *uint16 { return &v }

func linearSchedule(pl PriceLinear) *Schedule {
	return &Schedule{Version: 1, Kind: KindPriceLinear, PriceLinear: &pl}
}

func TestComputeFeeBp_LinearInterpolation(t *testing.T) {
	// Halving schedule over a doubling of price.
	s := linearSchedule(PriceLinear{
		StartPrice:        1_000_000,
		EndPrice:          2_000_000,
		StartMultiplierBp: 10000,
		EndMultiplierBp:   5000,
	})
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		price uint64
		want  uint16
	}{
		{1_500_000, 7500},
		{0, 10000},         // clamped below
		{3_000_000, 5000},  // clamped above
		{1_000_000, 10000}, // exact start
		{2_000_000, 5000},  // exact end
	}

	for _, tt := range tests {
		if got := s.ComputeFeeBp(tt.price); got != tt.want {
			t.Errorf("ComputeFeeBp(%d) = %d, want %d", tt.price, got, tt.want)
		}
	}
}

func TestComputeFeeBp_TruncatingDivision(t *testing.T) {
	// Division truncates toward zero, matching the persisted-ledger
	// arithmetic clients already depend on.
	s := linearSchedule(PriceLinear{
		StartPrice:        100,
		EndPrice:          1000,
		StartMultiplierBp: 10000,
		EndMultiplierBp:   100,
	})

	if got := s.ComputeFeeBp(500); got != 5600 {
		t.Errorf("ComputeFeeBp(500) = %d, want 5600", got)
	}
}

func TestComputeFeeBp_Override(t *testing.T) {
	s := linearSchedule(PriceLinear{
		StartPrice:        100,
		EndPrice:          1000,
		StartMultiplierBp: 10000,
		EndMultiplierBp:   100,
	})
	s.OverrideRoyaltyBp = uint16p(250)

	// Override ignores kind and price entirely.
	for _, price := range []uint64{0, 100, 500, 1000, 5000} {
		if got := s.ComputeFeeBp(price); got != 250 {
			t.Errorf("ComputeFeeBp(%d) = %d, want 250 (override)", price, got)
		}
	}
}

func TestComputeFeeBp_DegenerateBounds(t *testing.T) {
	// Equal price bounds return the start multiplier with no division.
	s := linearSchedule(PriceLinear{
		StartPrice:        500,
		EndPrice:          500,
		StartMultiplierBp: 4000,
		EndMultiplierBp:   9000,
	})

	if got := s.ComputeFeeBp(500); got != 4000 {
		t.Errorf("ComputeFeeBp(500) = %d, want 4000", got)
	}
	if got := s.ComputeFeeBp(499); got != 4000 {
		t.Errorf("ComputeFeeBp(499) = %d, want 4000", got)
	}
	if got := s.ComputeFeeBp(501); got != 9000 {
		t.Errorf("ComputeFeeBp(501) = %d, want 9000", got)
	}
}

func TestComputeFeeBp_IncreasingSchedule(t *testing.T) {
	s := linearSchedule(PriceLinear{
		StartPrice:        100,
		EndPrice:          1000,
		StartMultiplierBp: 1000,
		EndMultiplierBp:   10000,
	})

	if got := s.ComputeFeeBp(550); got != 5500 {
		t.Errorf("ComputeFeeBp(550) = %d, want 5500", got)
	}
}

func TestComputeFeeBp_LargePrices(t *testing.T) {
	// Full-range prices must not overflow the interpolation arithmetic.
	s := linearSchedule(PriceLinear{
		StartPrice:        0,
		EndPrice:          1 << 62,
		StartMultiplierBp: 10000,
		EndMultiplierBp:   0,
	})

	if got := s.ComputeFeeBp(1 << 61); got != 5000 {
		t.Errorf("ComputeFeeBp(2^61) = %d, want 5000", got)
	}
}

func TestApplyTo(t *testing.T) {
	s := linearSchedule(PriceLinear{
		StartPrice:        100,
		EndPrice:          1000,
		StartMultiplierBp: 10000,
		EndMultiplierBp:   100,
	})
	baseBp := uint16(1000)

	tests := []struct {
		price uint64
		want  uint16
	}{
		{0, 1000},
		{100, 1000},
		{500, 560},
		{1000, 10},
		{10000, 10},
	}

	for _, tt := range tests {
		if got := s.ApplyTo(tt.price, baseBp); got != tt.want {
			t.Errorf("ApplyTo(%d, %d) = %d, want %d", tt.price, baseBp, got, tt.want)
		}
	}
}

func TestApplyTo_ZeroOverride(t *testing.T) {
	s := linearSchedule(PriceLinear{
		StartPrice:        100,
		EndPrice:          1000,
		StartMultiplierBp: 5000,
		EndMultiplierBp:   10000,
	})
	s.OverrideRoyaltyBp = uint16p(0)

	for _, price := range []uint64{0, 500, 2000} {
		if got := s.ApplyTo(price, 1000); got != 0 {
			t.Errorf("ApplyTo(%d) = %d, want 0 (zero override)", price, got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       *Schedule
		wantErr bool
	}{
		{
			"valid decreasing multipliers",
			linearSchedule(PriceLinear{StartPrice: 1, EndPrice: 2, StartMultiplierBp: 10000, EndMultiplierBp: 5000}),
			false,
		},
		{
			"valid increasing multipliers",
			linearSchedule(PriceLinear{StartPrice: 1, EndPrice: 2, StartMultiplierBp: 0, EndMultiplierBp: 10000}),
			false,
		},
		{
			"inverted price bounds",
			linearSchedule(PriceLinear{StartPrice: 2, EndPrice: 1, StartMultiplierBp: 10000, EndMultiplierBp: 5000}),
			true,
		},
		{
			"start multiplier above 100%",
			linearSchedule(PriceLinear{StartPrice: 1, EndPrice: 2, StartMultiplierBp: 10001, EndMultiplierBp: 5000}),
			true,
		},
		{
			"override above 100%",
			&Schedule{
				Kind:              KindPriceLinear,
				OverrideRoyaltyBp: uint16p(10001),
				PriceLinear:       &PriceLinear{StartPrice: 1, EndPrice: 2},
			},
			true,
		},
		{
			"missing price_linear payload",
			&Schedule{Kind: KindPriceLinear},
			true,
		},
		{
			"unknown kind",
			&Schedule{Kind: 99},
			true,
		},
		{
			"nil schedule",
			nil,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("Validate() error = %v, want ErrInvalidSchedule", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}
