package services

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/soaringjerry/surveyform/internal/models"
)

const maxSeed = 1000000

// Shuffle returns a permutation of questions that depends only on the input
// order and the seed. Questions with an explicit order keep their slot; the
// unordered ones are permuted among the slots they occupy. The input slice is
// not modified.
func Shuffle(questions []*models.Question, seed int64) []*models.Question {
	out := append([]*models.Question(nil), questions...)
	slots := make([]int, 0, len(out))
	for i, q := range out {
		if q.Order == nil {
			slots = append(slots, i)
		}
	}
	if len(slots) < 2 {
		return out
	}
	picked := make([]*models.Question, len(slots))
	for i, idx := range slots {
		picked[i] = out[idx]
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	for i, idx := range slots {
		out[idx] = picked[i]
	}
	return out
}

// NewSeed draws a fresh seed for a form session.
func NewSeed() int64 {
	return rand.Int64N(maxSeed + 1)
}

// ParseSeed accepts an explicit integer seed parameter.
func ParseSeed(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
