package relational

import (
	"math"
	"testing"
)

func TestGraphMap_CoMovingSymbolsBecomeStrong(t *testing.T) {
	g := NewGraphMap([]string{"A", "B"}, DefaultConfig())

	var st State
	for i := 0; i < 20; i++ {
		r := 0.01
		if i%2 == 0 {
			r = -0.01
		}
		st = g.Update(map[string]float64{"A": r, "B": r})
	}

	if st.MotifKey != "A~B:S+" {
		t.Errorf("MotifKey = %q, want A~B:S+", st.MotifKey)
	}
	if st.ClusterLabel != ClusterCoupled {
		t.Errorf("ClusterLabel = %q, want %q", st.ClusterLabel, ClusterCoupled)
	}
	if st.CouplingIndex < 0.9 {
		t.Errorf("CouplingIndex = %v, want near 1", st.CouplingIndex)
	}
}

func TestGraphMap_AntiCorrelated(t *testing.T) {
	g := NewGraphMap([]string{"A", "B"}, DefaultConfig())
	var st State
	for i := 0; i < 20; i++ {
		r := 0.01
		if i%2 == 0 {
			r = -0.01
		}
		st = g.Update(map[string]float64{"A": r, "B": -r})
	}
	if st.MotifKey != "A~B:S-" {
		t.Errorf("MotifKey = %q, want A~B:S-", st.MotifKey)
	}
}

func TestGraphMap_Hysteresis(t *testing.T) {
	g := NewGraphMap([]string{"A", "B"}, DefaultConfig())
	es := g.edges[[2]int{0, 1}]

	g.observe(es, LabelStrongPos)
	if es.stable != LabelNone {
		t.Fatalf("Stable label changed after one observation: %q", es.stable)
	}
	g.observe(es, LabelWeakPos)
	if es.stable != LabelNone {
		t.Fatalf("Stable label changed on alternating candidates: %q", es.stable)
	}
	g.observe(es, LabelWeakPos)
	if es.stable != LabelWeakPos {
		t.Errorf("Stable label = %q, want W+ after two consecutive observations", es.stable)
	}
}

func TestGraphMap_CorrelationBounded(t *testing.T) {
	g := NewGraphMap([]string{"A", "B", "C"}, DefaultConfig())
	rets := []map[string]float64{
		{"A": 0.5, "B": -0.2, "C": 0},
		{"A": -0.1, "B": 0.3, "C": 0.7},
		{"A": 0.02, "B": 0.02, "C": -0.4},
	}
	for _, r := range rets {
		st := g.Update(r)
		for _, e := range st.TopEdges {
			if e.Weight < -1 || e.Weight > 1 || math.IsNaN(e.Weight) {
				t.Errorf("Edge %s~%s weight %v out of range", e.Source, e.Target, e.Weight)
			}
		}
		if len(st.Vector) != 6 {
			t.Errorf("Vector length = %d, want 6", len(st.Vector))
		}
	}
}

func TestGraphMap_ZeroVarianceIsFragmented(t *testing.T) {
	g := NewGraphMap([]string{"A", "B"}, DefaultConfig())
	st := g.Update(map[string]float64{})
	if st.ClusterLabel != ClusterFragmented {
		t.Errorf("ClusterLabel = %q, want fragmented", st.ClusterLabel)
	}
	if st.MotifKey != "A~B:0" {
		t.Errorf("MotifKey = %q, want A~B:0", st.MotifKey)
	}
}

func TestGraphMap_SingleSymbol(t *testing.T) {
	g := NewGraphMap([]string{"A"}, DefaultConfig())
	st := g.Update(map[string]float64{"A": 0.01})
	if st.MotifKey != MotifNone {
		t.Errorf("MotifKey = %q, want %q", st.MotifKey, MotifNone)
	}
}
