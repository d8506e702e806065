// Package voice assigns synthesizer voices to speakers. Each distinct
// speaker keeps the same voice for the life of a job, and voices rotate
// round-robin within a gender partition so multi-speaker dialogue stays
// distinguishable.
package voice

import (
	"fmt"
	"sync"
)

// Voice is one synthesizer voice identity.
type Voice struct {
	ID     string
	Gender string // "male" or "female"
}

// DefaultPool covers the OpenAI speech voices. Azure voices are resolved
// per language by the synthesizer itself.
var DefaultPool = []Voice{
	{ID: "onyx", Gender: "male"},
	{ID: "echo", Gender: "male"},
	{ID: "alloy", Gender: "male"},
	{ID: "nova", Gender: "female"},
	{ID: "shimmer", Gender: "female"},
	{ID: "fable", Gender: "female"},
}

// Assigner hands out voices. Safe for concurrent use.
type Assigner struct {
	mu       sync.Mutex
	male     []Voice
	female   []Voice
	assigned map[string]Voice
	nextM    int
	nextF    int
}

// NewAssigner partitions the pool by gender. An empty pool falls back to
// DefaultPool.
func NewAssigner(pool []Voice) *Assigner {
	if len(pool) == 0 {
		pool = DefaultPool
	}
	a := &Assigner{assigned: make(map[string]Voice)}
	for _, v := range pool {
		if v.Gender == "female" {
			a.female = append(a.female, v)
		} else {
			a.male = append(a.male, v)
		}
	}
	return a
}

// Assign returns the voice for a speaker, allocating one on first sight.
// The gender seen at first sight decides the partition; later calls for the
// same speaker return the same voice even when the recognizer flips the
// gender label mid-video. Speakers with unknown gender draw from the male
// partition so single-narrator videos get a consistent default.
func (a *Assigner) Assign(speaker, gender string) (Voice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if v, ok := a.assigned[speaker]; ok {
		return v, nil
	}

	var v Voice
	switch gender {
	case "female":
		if len(a.female) == 0 {
			return Voice{}, fmt.Errorf("no female voices in pool")
		}
		v = a.female[a.nextF%len(a.female)]
		a.nextF++
	default:
		if len(a.male) == 0 {
			return Voice{}, fmt.Errorf("no male voices in pool")
		}
		v = a.male[a.nextM%len(a.male)]
		a.nextM++
	}

	a.assigned[speaker] = v
	return v, nil
}
