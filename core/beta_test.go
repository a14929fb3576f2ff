package core

import (
	"errors"
	"math"
	"testing"
)

func TestBetaParameters_Valid(t *testing.T) {
	alpha, beta, err := BetaParameters(0.34, 0.21)
	if err != nil {
		t.Fatalf("BetaParameters(0.34, 0.21): %v", err)
	}
	if alpha <= 0 || beta <= 0 {
		t.Fatalf("alpha=%v beta=%v, want both positive", alpha, beta)
	}
	// Method of moments round trip.
	mean := alpha / (alpha + beta)
	variance := alpha * beta / ((alpha + beta) * (alpha + beta) * (alpha + beta + 1))
	if math.Abs(mean-0.34) > 1e-12 {
		t.Fatalf("mean = %v, want 0.34", mean)
	}
	if math.Abs(math.Sqrt(variance)-0.21) > 1e-12 {
		t.Fatalf("sd = %v, want 0.21", math.Sqrt(variance))
	}
}

func TestBetaParameters_Invalid(t *testing.T) {
	cases := []struct {
		name      string
		mu, sigma float64
	}{
		{"variance too large", 0.5, 0.6},
		{"variance at bound", 0.5, 0.5},
		{"zero sd", 0.5, 0},
		{"mean zero", 0, 0.1},
		{"mean one", 1, 0.1},
		{"nan mean", math.NaN(), 0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := BetaParameters(tc.mu, tc.sigma); !errors.Is(err, ErrInvalidBeta) {
				t.Fatalf("BetaParameters(%v, %v) err = %v, want ErrInvalidBeta", tc.mu, tc.sigma, err)
			}
		})
	}
}

func TestSampleRunParameter_Reproducible(t *testing.T) {
	m := Moments{Mean: 0.5, SD: 0.1}
	a, err := SampleRunParameter("vaccine_efficacy", 12, m)
	if err != nil {
		t.Fatalf("SampleRunParameter: %v", err)
	}
	b, err := SampleRunParameter("vaccine_efficacy", 12, m)
	if err != nil {
		t.Fatalf("SampleRunParameter: %v", err)
	}
	if a != b {
		t.Fatalf("same draw gave %v then %v", a, b)
	}
	if a <= 0 || a >= 1 {
		t.Fatalf("sample %v outside (0,1)", a)
	}

	other, err := SampleRunParameter("vaccine_catchup_proportion", 12, m)
	if err != nil {
		t.Fatalf("SampleRunParameter: %v", err)
	}
	if other == a {
		t.Fatalf("different streams gave identical samples %v", a)
	}
}

func TestSampleRunParameter_SurfacesBadMoments(t *testing.T) {
	_, err := SampleRunParameter("vaccine_efficacy", 0, Moments{Mean: 0.5, SD: 0.6})
	if !errors.Is(err, ErrInvalidBeta) {
		t.Fatalf("err = %v, want ErrInvalidBeta", err)
	}
}

func TestSampleBeta_MeanOverManyDraws(t *testing.T) {
	const n = 2000
	var sum float64
	for draw := 0; draw < n; draw++ {
		v, err := SampleRunParameter("vaccine_efficacy", draw, Moments{Mean: 0.5, SD: 0.1})
		if err != nil {
			t.Fatalf("draw %d: %v", draw, err)
		}
		sum += v
	}
	if mean := sum / n; math.Abs(mean-0.5) > 0.02 {
		t.Fatalf("mean of %d draws = %v, want ~0.5", n, mean)
	}
}
