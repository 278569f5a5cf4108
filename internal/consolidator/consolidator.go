// Package consolidator aggregates bars into fixed-period buckets.
package consolidator

import (
	"errors"
	"math"
	"time"

	"trident-trader/internal/domain"
)

// ErrInvalidPeriod is returned for a non-positive bucket period.
var ErrInvalidPeriod = errors.New("consolidation period must be positive")

// FloorTime returns the start of the period-aligned bucket containing ts.
// Buckets are aligned to the Unix epoch: floor((ts - epoch) / period) * period.
func FloorTime(ts time.Time, period time.Duration) time.Time {
	ns := ts.UnixNano()
	p := int64(period)
	q := ns / p
	if ns%p < 0 {
		q--
	}
	return time.Unix(0, q*p).UTC()
}

// Consolidator merges bars of one symbol into period-aligned buckets.
// It is either empty or accumulating exactly one open bucket.
type Consolidator struct {
	symbol string
	period time.Duration

	open        bool
	bucketStart time.Time
	acc         domain.Bar
}

// New creates a consolidator for symbol with the given bucket period.
func New(symbol string, period time.Duration) (*Consolidator, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return &Consolidator{symbol: symbol, period: period}, nil
}

// Period returns the bucket period.
func (c *Consolidator) Period() time.Duration {
	return c.period
}

// Update feeds one bar. If the bar belongs to a new bucket, the previously open
// bucket is returned with ok=true.
//
// Merge rules within a bucket:
//   - high = MAX(high), low = MIN(low)
//   - close = LAST(close), open = FIRST(open)
//   - volume = SUM(volume)
//   - bid/ask = LAST non-nil quote; a new bucket starts from its first bar's quotes
func (c *Consolidator) Update(bar domain.Bar) (closed domain.Bar, ok bool) {
	start := FloorTime(bar.TsEnd, c.period)

	if c.open && start.Equal(c.bucketStart) {
		c.acc.High = math.Max(c.acc.High, bar.High)
		c.acc.Low = math.Min(c.acc.Low, bar.Low)
		c.acc.Close = bar.Close
		c.acc.Volume += bar.Volume
		if bar.Bid != nil {
			c.acc.Bid = domain.Float(*bar.Bid)
		}
		if bar.Ask != nil {
			c.acc.Ask = domain.Float(*bar.Ask)
		}
		return domain.Bar{}, false
	}

	if c.open {
		closed, ok = c.emit(), true
	}
	c.start(start, bar)
	return closed, ok
}

// Flush emits the open bucket, if any, and resets to empty.
func (c *Consolidator) Flush() (domain.Bar, bool) {
	if !c.open {
		return domain.Bar{}, false
	}
	out := c.emit()
	c.open = false
	c.acc = domain.Bar{}
	return out, true
}

func (c *Consolidator) start(bucketStart time.Time, bar domain.Bar) {
	c.open = true
	c.bucketStart = bucketStart
	c.acc = domain.Bar{
		Symbol: c.symbol,
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
		Bid:    copyFloat(bar.Bid),
		Ask:    copyFloat(bar.Ask),
	}
}

func (c *Consolidator) emit() domain.Bar {
	out := c.acc
	out.TsEnd = c.bucketStart.Add(c.period)
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return domain.Float(*v)
}
