package features

import (
	"math"
	"slices"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std returns the population standard deviation, 0 for fewer than 2 values.
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)))
}

// Median returns the median (mean of the two middle values for even length), 0 if empty.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	data := slices.Clone(values)
	slices.Sort(data)
	n := len(data)
	mid := n / 2
	if n%2 == 1 {
		return data[mid]
	}
	return 0.5 * (data[mid-1] + data[mid])
}

// MAD returns the median absolute deviation from the median.
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	return Median(dev)
}

// Clamp01 limits v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// window is a fixed-capacity FIFO of float64.
type window struct {
	buf []float64
	cap int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]float64, 0, capacity), cap: capacity}
}

func (w *window) push(v float64) {
	if w.cap <= 0 {
		return
	}
	if len(w.buf) == w.cap {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:w.cap-1]
	}
	w.buf = append(w.buf, v)
}

func (w *window) values() []float64 {
	return w.buf
}

func (w *window) last() float64 {
	if len(w.buf) == 0 {
		return 0
	}
	return w.buf[len(w.buf)-1]
}
