// Package relational tracks pairwise co-movement between symbols and reduces
// it to a discrete motif key.
package relational

import (
	"math"
	"slices"
	"strings"
)

// Edge labels.
const (
	LabelNone         = "0"
	LabelWeakPos      = "W+"
	LabelWeakNeg      = "W-"
	LabelStrongPos    = "S+"
	LabelStrongNeg    = "S-"
	MotifNone         = "none"
	ClusterCoupled    = "regime-coupled"
	ClusterMixed      = "mixed"
	ClusterFragmented = "fragmented"
)

// Config holds the relational graph parameters.
type Config struct {
	Decay           float64 `yaml:"decay" default:"0.94" validate:"gt=0,lt=1"`
	WeakThreshold   float64 `yaml:"weak_threshold" default:"0.3" validate:"gte=0,lte=1"`
	StrongThreshold float64 `yaml:"strong_threshold" default:"0.6" validate:"gte=0,lte=1"`
	HysteresisSteps int     `yaml:"hysteresis_steps" default:"2" validate:"gte=1"`
	TopK            int     `yaml:"top_k" default:"4" validate:"gte=1"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{Decay: 0.94, WeakThreshold: 0.3, StrongThreshold: 0.6, HysteresisSteps: 2, TopK: 4}
}

// Edge is a symbol pair with its current correlation and stable label.
type Edge struct {
	Source string
	Target string
	Weight float64
	Label  string
}

// State is the relational snapshot after one update.
type State struct {
	TopEdges      []Edge
	CouplingIndex float64
	ClusterLabel  string
	MotifKey      string
	Vector        []float64
}

type edgeState struct {
	stable    string
	candidate string
	streak    int
}

// GraphMap maintains EWMA mean and covariance of symbol returns.
type GraphMap struct {
	cfg     Config
	symbols []string

	mean  []float64
	cov   [][]float64
	edges map[[2]int]*edgeState
}

// NewGraphMap creates a graph over symbols in the given order.
func NewGraphMap(symbols []string, cfg Config) *GraphMap {
	n := len(symbols)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	g := &GraphMap{
		cfg:     cfg,
		symbols: slices.Clone(symbols),
		mean:    make([]float64, n),
		cov:     cov,
		edges:   make(map[[2]int]*edgeState),
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			g.edges[[2]int{i, j}] = &edgeState{stable: LabelNone, candidate: LabelNone}
		}
	}
	return g
}

// Update folds one step of returns into the EWMA state and returns the snapshot.
// Missing symbols contribute a zero return.
//
//   - d = r - mean(prev)
//   - C = decay*C + (1-decay)*d*d'
//   - mean = decay*mean + (1-decay)*r
func (g *GraphMap) Update(returns map[string]float64) State {
	n := len(g.symbols)
	lambda := g.cfg.Decay

	r := make([]float64, n)
	d := make([]float64, n)
	for i, s := range g.symbols {
		r[i] = returns[s]
		d[i] = r[i] - g.mean[i]
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g.cov[i][j] = lambda*g.cov[i][j] + (1-lambda)*d[i]*d[j]
		}
	}
	for i := range g.mean {
		g.mean[i] = lambda*g.mean[i] + (1-lambda)*r[i]
	}

	edges := make([]Edge, 0, len(g.edges))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := g.Correlation(i, j)
			es := g.edges[[2]int{i, j}]
			g.observe(es, g.label(c))
			edges = append(edges, Edge{Source: g.symbols[i], Target: g.symbols[j], Weight: c, Label: es.stable})
		}
	}
	return g.snapshot(edges)
}

// Correlation returns the clamped EWMA correlation between symbols i and j.
func (g *GraphMap) Correlation(i, j int) float64 {
	vi, vj := g.cov[i][i], g.cov[j][j]
	if vi <= 0 || vj <= 0 {
		return 0
	}
	c := g.cov[i][j] / math.Sqrt(vi*vj)
	return math.Max(-1, math.Min(1, c))
}

func (g *GraphMap) label(c float64) string {
	a := math.Abs(c)
	switch {
	case a >= g.cfg.StrongThreshold:
		if c > 0 {
			return LabelStrongPos
		}
		return LabelStrongNeg
	case a >= g.cfg.WeakThreshold:
		if c > 0 {
			return LabelWeakPos
		}
		return LabelWeakNeg
	}
	return LabelNone
}

// observe debounces label changes: the stable label moves only after the same
// candidate has been seen HysteresisSteps times in a row.
func (g *GraphMap) observe(es *edgeState, candidate string) {
	if candidate == es.stable {
		es.candidate = candidate
		es.streak = 0
		return
	}
	if candidate == es.candidate {
		es.streak++
	} else {
		es.candidate = candidate
		es.streak = 1
	}
	if es.streak >= g.cfg.HysteresisSteps {
		es.stable = candidate
		es.streak = 0
	}
}

func (g *GraphMap) snapshot(edges []Edge) State {
	if len(edges) == 0 {
		return State{ClusterLabel: ClusterFragmented, MotifKey: MotifNone, Vector: make([]float64, 6)}
	}

	var absSum float64
	var strong, nonZero int
	parts := make([]string, 0, len(edges))
	for _, e := range edges {
		absSum += math.Abs(e.Weight)
		switch e.Label {
		case LabelStrongPos, LabelStrongNeg:
			strong++
			nonZero++
		case LabelWeakPos, LabelWeakNeg:
			nonZero++
		}
		parts = append(parts, e.Source+"~"+e.Target+":"+e.Label)
	}
	slices.Sort(parts)

	total := float64(len(edges))
	coupling := absSum / total
	strongFrac := float64(strong) / total
	nonZeroFrac := float64(nonZero) / total

	cluster := ClusterFragmented
	switch {
	case strongFrac >= 0.5:
		cluster = ClusterCoupled
	case nonZero > 0:
		cluster = ClusterMixed
	}

	ranked := slices.Clone(edges)
	slices.SortStableFunc(ranked, func(a, b Edge) int {
		aw, bw := math.Abs(a.Weight), math.Abs(b.Weight)
		switch {
		case aw > bw:
			return -1
		case aw < bw:
			return 1
		}
		return 0
	})
	if len(ranked) > g.cfg.TopK {
		ranked = ranked[:g.cfg.TopK]
	}

	vector := []float64{coupling, 0, 0, 0, strongFrac, nonZeroFrac}
	for i := 0; i < 3 && i < len(ranked); i++ {
		vector[1+i] = ranked[i].Weight
	}

	return State{
		TopEdges:      ranked,
		CouplingIndex: coupling,
		ClusterLabel:  cluster,
		MotifKey:      strings.Join(parts, "|"),
		Vector:        vector,
	}
}
