package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"
)

// Moments is the mean and standard deviation of a sampled parameter.
type Moments struct {
	Mean float64 `yaml:"mean"`
	SD   float64 `yaml:"sd"`
}

// BetaParameters returns the Beta shape parameters matching mu and sigma by
// the method of moments. It fails when no Beta distribution has those
// moments, i.e. when sigma^2 >= mu(1-mu).
func BetaParameters(mu, sigma float64) (alpha, beta float64, err error) {
	if !(mu > 0 && mu < 1) {
		return 0, 0, fmt.Errorf("%w: mean %v outside (0, 1)", ErrInvalidBeta, mu)
	}
	if !(sigma > 0) {
		return 0, 0, fmt.Errorf("%w: sd %v must be positive", ErrInvalidBeta, sigma)
	}
	common := mu*(1-mu)/(sigma*sigma) - 1
	alpha = mu * common
	beta = (1 - mu) * common
	if !(alpha > 0 && beta > 0) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return 0, 0, fmt.Errorf("%w: mean %v sd %v gives alpha=%v beta=%v (sd^2 must be below mean*(1-mean)=%v)",
			ErrInvalidBeta, mu, sigma, alpha, beta, mu*(1-mu))
	}
	return alpha, beta, nil
}

// SampleBeta draws a single Beta-distributed value with the given moments.
func SampleBeta(src rand.Source, mu, sigma float64) (float64, error) {
	alpha, beta, err := BetaParameters(mu, sigma)
	if err != nil {
		return 0, err
	}
	dist := distuv.Beta{Alpha: alpha, Beta: beta, Src: src}
	return dist.Rand(), nil
}

// SampleRunParameter draws a run-level scalar from its own stream, seeded by
// the draw number, so every run of the same draw sees the same value.
func SampleRunParameter(streamName string, drawNumber int, m Moments) (float64, error) {
	stream := NewRandomStream(streamName, drawNumber)
	v, err := SampleBeta(stream.Source(strconv.Itoa(drawNumber)), m.Mean, m.SD)
	if err != nil {
		return 0, fmt.Errorf("sample %s: %w", streamName, err)
	}
	return v, nil
}
