// Package features maintains online rolling statistics per symbol.
package features

import (
	"math"
	"time"
)

// Config holds rolling window sizes.
type Config struct {
	ExpectedPeriod time.Duration // nominal spacing between updates
	VolumeWindow   int
	ReturnWindow   int
	VolWindow      int
	EventWindow    int
	OutlierKMAD    float64
}

// DefaultConfig returns the default window sizes for the given bar period.
func DefaultConfig(expected time.Duration) Config {
	return Config{
		ExpectedPeriod: expected,
		VolumeWindow:   60,
		ReturnWindow:   60,
		VolWindow:      30,
		EventWindow:    60,
		OutlierKMAD:    6.0,
	}
}

// minOutlierSamples is the number of returns required before outliers are flagged.
const minOutlierSamples = 5

// madFloor keeps the outlier threshold positive when returns are constant.
const madFloor = 1e-9

// Metrics is a snapshot of the rolling statistics.
type Metrics struct {
	VolumeZ         float64
	GapRate         float64
	OutlierRate     float64
	VolOfVol        float64
	EventIntensityZ float64
	LastReturn      float64
}

// RollingState tracks bounded windows of volumes, returns, volatility,
// outlier flags and news intensity for one symbol.
type RollingState struct {
	cfg Config

	lastTs    time.Time
	hasLast   bool
	lastClose float64

	missing int
	total   int

	volumes  *window
	returns  *window
	vols     *window
	outliers *window
	events   *window

	lastReturn float64
}

// NewRollingState creates an empty rolling state.
func NewRollingState(cfg Config) *RollingState {
	return &RollingState{
		cfg:      cfg,
		volumes:  newWindow(cfg.VolumeWindow),
		returns:  newWindow(cfg.ReturnWindow),
		vols:     newWindow(cfg.VolWindow),
		outliers: newWindow(cfg.ReturnWindow),
		events:   newWindow(cfg.EventWindow),
	}
}

// Update folds one observation into the windows.
//
// Gap accounting uses periods = floor(elapsed / expected):
//   - periods > 0: total += periods, missing += periods - 1
//   - otherwise:   total += 1
func (s *RollingState) Update(ts time.Time, close, volume, eventIntensity float64) {
	if s.hasLast && s.cfg.ExpectedPeriod > 0 {
		periods := int(ts.Sub(s.lastTs) / s.cfg.ExpectedPeriod)
		if periods > 0 {
			s.total += periods
			s.missing += periods - 1
		} else {
			s.total++
		}
	}

	ret := 0.0
	if s.hasLast && s.lastClose > 0 {
		ret = close/s.lastClose - 1
	}
	s.lastReturn = ret
	s.returns.push(ret)
	s.volumes.push(volume)
	s.events.push(eventIntensity)
	s.vols.push(Std(s.returns.values()))

	rets := s.returns.values()
	mad := MAD(rets)
	if mad <= 0 {
		mad = madFloor
	}
	flag := 0.0
	if len(rets) > minOutlierSamples && math.Abs(ret-Median(rets)) > s.cfg.OutlierKMAD*mad {
		flag = 1
	}
	s.outliers.push(flag)

	s.lastTs = ts
	s.lastClose = close
	s.hasLast = true
}

// Metrics returns the current rolling statistics.
func (s *RollingState) Metrics() Metrics {
	var gap float64
	if s.total > 0 {
		gap = float64(s.missing) / float64(s.total)
	}
	return Metrics{
		VolumeZ:         zscore(s.volumes),
		GapRate:         gap,
		OutlierRate:     Mean(s.outliers.values()),
		VolOfVol:        Std(s.vols.values()),
		EventIntensityZ: zscore(s.events),
		LastReturn:      s.lastReturn,
	}
}

// zscore of the most recent value against the window. 0 for a flat window.
func zscore(w *window) float64 {
	std := Std(w.values())
	if std <= 0 {
		return 0
	}
	return (w.last() - Mean(w.values())) / std
}
