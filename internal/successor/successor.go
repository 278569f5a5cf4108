// Package successor learns a successor representation over discrete
// relational states.
package successor

import (
	"math"
	"slices"
)

// Config holds TD learning parameters.
type Config struct {
	Gamma float64 `yaml:"gamma" default:"0.95" validate:"gte=0,lt=1"`
	Alpha float64 `yaml:"alpha" default:"0.1" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{Gamma: 0.95, Alpha: 0.1}
}

// Successor is a ranked successor state with its normalized weight.
type Successor struct {
	StateID int
	Prob    float64
}

// Snapshot describes the current state after an update.
type Snapshot struct {
	StateID           int
	Uncertainty       float64
	TransitionEntropy float64
	TDErrorNorm       float64
	Learned           bool
	TopSuccessors     []Successor
}

// Map is an arena of successor rows indexed by discovered state id.
// The index grows with each distinct key and is never evicted.
type Map struct {
	cfg Config

	index  map[string]int
	keys   []string
	rows   [][]float64
	counts [][]int

	prev    int
	hasPrev bool
}

// New creates an empty successor map.
func New(cfg Config) *Map {
	return &Map{cfg: cfg, index: make(map[string]int)}
}

// Len returns the number of discovered states.
func (m *Map) Len() int {
	return len(m.keys)
}

// Key returns the motif key for a state id.
func (m *Map) Key(id int) string {
	return m.keys[id]
}

// StateID returns the id for key, discovering it if new.
func (m *Map) StateID(key string) int {
	if id, ok := m.index[key]; ok {
		return id
	}
	id := len(m.keys)
	m.index[key] = id
	m.keys = append(m.keys, key)
	for i := range m.rows {
		m.rows[i] = append(m.rows[i], 0)
		m.counts[i] = append(m.counts[i], 0)
	}
	m.rows = append(m.rows, make([]float64, id+1))
	m.counts = append(m.counts, make([]int, id+1))
	return id
}

// Update moves to the state for key. The transition from the previous state is
// always counted; the TD(0) update of the previous row runs only when learn is set.
//
//	M[prev] += alpha * (onehot(s) + gamma*M[s] - M[prev])
func (m *Map) Update(key string, learn bool) Snapshot {
	s := m.StateID(key)
	tdNorm := 0.0
	learned := false

	if m.hasPrev {
		prev := m.prev
		m.counts[prev][s]++

		if learn {
			row := m.rows[prev]
			next := m.rows[s]
			target := make([]float64, len(row))
			for j := range row {
				target[j] = m.cfg.Gamma * next[j]
			}
			target[s] += 1

			ss := 0.0
			for j := range row {
				delta := target[j] - row[j]
				ss += delta * delta
				row[j] += m.cfg.Alpha * delta
			}
			tdNorm = math.Sqrt(ss)
			learned = true
		}
	}
	m.prev = s
	m.hasPrev = true

	h := m.TransitionEntropy(s)
	return Snapshot{
		StateID:           s,
		Uncertainty:       clamp01(0.7*h + 0.3*math.Min(1, tdNorm)),
		TransitionEntropy: h,
		TDErrorNorm:       tdNorm,
		Learned:           learned,
		TopSuccessors:     m.topSuccessors(s, 3),
	}
}

// TransitionEntropy is the normalized entropy of observed transitions out of
// state id: 1 when none were observed, 0 when at most one state is known.
func (m *Map) TransitionEntropy(id int) float64 {
	n := len(m.keys)
	if n <= 1 {
		return 0
	}
	total := 0
	for _, c := range m.counts[id] {
		total += c
	}
	if total == 0 {
		return 1
	}
	h := 0.0
	for _, c := range m.counts[id] {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return clamp01(h / math.Log(float64(n)))
}

// Row returns a copy of the successor row for state id.
func (m *Map) Row(id int) []float64 {
	return slices.Clone(m.rows[id])
}

func (m *Map) topSuccessors(id, k int) []Successor {
	row := m.rows[id]
	total := 0.0
	for _, v := range row {
		total += math.Max(0, v)
	}
	if total <= 0 {
		return nil
	}
	out := make([]Successor, 0, len(row))
	for j, v := range row {
		out = append(out, Successor{StateID: j, Prob: math.Max(0, v) / total})
	}
	slices.SortStableFunc(out, func(a, b Successor) int {
		switch {
		case a.Prob > b.Prob:
			return -1
		case a.Prob < b.Prob:
			return 1
		}
		return 0
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
