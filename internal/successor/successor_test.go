package successor

import (
	"math"
	"testing"
)

func TestMap_DiscoversStatesMonotonically(t *testing.T) {
	m := New(DefaultConfig())
	m.Update("a", true)
	m.Update("b", true)
	m.Update("a", true)
	m.Update("c", true)

	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	if m.StateID("a") != 0 || m.StateID("b") != 1 || m.StateID("c") != 2 {
		t.Error("State ids not assigned in discovery order")
	}
	for i := 0; i < m.Len(); i++ {
		if len(m.Row(i)) != 3 {
			t.Errorf("Row %d length = %d, want 3", i, len(m.Row(i)))
		}
	}
}

func TestMap_TDUpdate(t *testing.T) {
	m := New(Config{Gamma: 0.5, Alpha: 0.1})
	m.Update("a", true)
	snap := m.Update("b", true)

	// target = onehot(b) + 0.5*M[b] = [0, 1]; M[a] += 0.1*[0, 1]
	row := m.Row(0)
	if math.Abs(row[0]) > 1e-12 || math.Abs(row[1]-0.1) > 1e-12 {
		t.Errorf("Row a = %v, want [0 0.1]", row)
	}
	if math.Abs(snap.TDErrorNorm-1) > 1e-12 {
		t.Errorf("TDErrorNorm = %v, want 1", snap.TDErrorNorm)
	}
	if !snap.Learned {
		t.Error("Expected Learned")
	}
}

func TestMap_NoLearningWhenDisabled(t *testing.T) {
	m := New(DefaultConfig())
	m.Update("a", false)
	snap := m.Update("b", false)

	if snap.Learned || snap.TDErrorNorm != 0 {
		t.Errorf("Expected no learning, got %+v", snap)
	}
	if m.Row(0)[1] != 0 {
		t.Errorf("Row changed without learning: %v", m.Row(0))
	}
	if m.counts[0][1] != 1 {
		t.Errorf("Transition not counted: %v", m.counts[0])
	}
}

func TestMap_TransitionEntropy(t *testing.T) {
	m := New(DefaultConfig())
	if snap := m.Update("a", true); snap.TransitionEntropy != 0 {
		t.Errorf("Single state entropy = %v, want 0", snap.TransitionEntropy)
	}

	// a->b, b->a, a->a: from a, transitions {b:1, a:1} => max entropy
	m.Update("b", true)
	m.Update("a", true)
	snap := m.Update("a", true)
	if math.Abs(snap.TransitionEntropy-1) > 1e-12 {
		t.Errorf("TransitionEntropy = %v, want 1", snap.TransitionEntropy)
	}

	// deterministic a->a dominates entropy down
	for i := 0; i < 50; i++ {
		snap = m.Update("a", true)
	}
	if snap.TransitionEntropy >= 0.5 {
		t.Errorf("TransitionEntropy = %v, want < 0.5 after repeated self-transitions", snap.TransitionEntropy)
	}
}

func TestMap_UncertaintyBounded(t *testing.T) {
	m := New(DefaultConfig())
	keys := []string{"a", "b", "c", "a", "c", "b", "b", "a"}
	for _, k := range keys {
		snap := m.Update(k, true)
		if snap.Uncertainty < 0 || snap.Uncertainty > 1 {
			t.Errorf("Uncertainty %v out of [0,1]", snap.Uncertainty)
		}
	}
}

func TestMap_UnseenStateHasFullEntropy(t *testing.T) {
	m := New(DefaultConfig())
	m.Update("a", true)
	snap := m.Update("b", true)
	// b has no outgoing transitions yet
	if snap.TransitionEntropy != 1 {
		t.Errorf("TransitionEntropy = %v, want 1", snap.TransitionEntropy)
	}
}
