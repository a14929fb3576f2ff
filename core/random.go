package core

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// RandomStream is a named, reproducible source of uniform draws.
//
// A draw is a pure function of (draw number, stream name, key, individual
// id): nothing is consumed, so asking twice returns the same value and the
// order of requests never matters. Independent decisions must use distinct
// keys.
type RandomStream struct {
	name string
	draw int
}

// NewRandomStream returns the stream called name for the given run draw.
func NewRandomStream(name string, drawNumber int) *RandomStream {
	return &RandomStream{name: name, draw: drawNumber}
}

// Name returns the stream name.
func (s *RandomStream) Name() string { return s.name }

// GetDraw returns one uniform [0,1) value per id.
func (s *RandomStream) GetDraw(ids []model.IndividualID, key string) []float64 {
	out := make([]float64, len(ids))
	for i, id := range ids {
		out[i] = s.draw01(key, uint64(id))
	}
	return out
}

// FilterForProbability returns the ids, in input order, whose draw is below
// the matching probability.
func (s *RandomStream) FilterForProbability(ids []model.IndividualID, probabilities []float64, key string) []model.IndividualID {
	if len(ids) != len(probabilities) {
		panic(fmt.Sprintf("random stream %s: %d ids but %d probabilities", s.name, len(ids), len(probabilities)))
	}
	var selected []model.IndividualID
	for i, id := range ids {
		if s.draw01(key, uint64(id)) < probabilities[i] {
			selected = append(selected, id)
		}
	}
	return selected
}

// FilterForScalar is FilterForProbability with one probability for all ids.
func (s *RandomStream) FilterForScalar(ids []model.IndividualID, p float64, key string) []model.IndividualID {
	var selected []model.IndividualID
	for _, id := range ids {
		if s.draw01(key, uint64(id)) < p {
			selected = append(selected, id)
		}
	}
	return selected
}

// GetSeed returns a deterministic seed for population-level sampling.
func (s *RandomStream) GetSeed(key string) uint64 {
	return s.hash(key, 0, false)
}

// Source returns a PCG source seeded from GetSeed(key), suitable for gonum
// distributions.
func (s *RandomStream) Source(key string) rand.Source {
	seed := s.GetSeed(key)
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

func (s *RandomStream) draw01(key string, id uint64) float64 {
	// Top 53 bits give every representable float64 in [0,1) the same weight.
	return float64(s.hash(key, id, true)>>11) / (1 << 53)
}

func (s *RandomStream) hash(key string, id uint64, withID bool) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(s.name)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(key)
	_, _ = d.Write([]byte{0})

	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(s.draw)))
	n := 8
	if withID {
		buf[8] = 1
		binary.LittleEndian.PutUint64(buf[9:17], id)
		n = 17
	}
	_, _ = d.Write(buf[:n])
	return d.Sum64()
}
