// Package walkforward evaluates the simulation on rolling train/test folds.
package walkforward

import (
	"errors"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/replay"
)

var (
	// ErrInvalidDuration is returned for a non-positive train, test or step duration.
	ErrInvalidDuration = errors.New("walk-forward durations must be positive")
	// ErrNoWindows is returned when the event span is too short for one fold.
	ErrNoWindows = errors.New("no walk-forward windows fit the event span")
)

// BuildWindows lays out folds from start while start+train+test <= end.
// Consecutive folds advance by step.
//
//   - train = [cursor, cursor+train)
//   - test  = [cursor+train, cursor+train+test)
func BuildWindows(start, end time.Time, train, test, step time.Duration) ([]domain.FoldWindow, error) {
	if train <= 0 || test <= 0 || step <= 0 {
		return nil, ErrInvalidDuration
	}
	start, end = start.UTC(), end.UTC()

	var windows []domain.FoldWindow
	for cursor, fold := start, 0; !cursor.Add(train + test).After(end); cursor, fold = cursor.Add(step), fold+1 {
		trainEnd := cursor.Add(train)
		windows = append(windows, domain.FoldWindow{
			FoldIndex:  fold,
			TrainStart: cursor,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    trainEnd.Add(test),
		})
	}
	return windows, nil
}

// SplitEvents returns the events of the train and test intervals of w.
// Input order is preserved.
func SplitEvents(events []replay.Event, w domain.FoldWindow) (train, test []replay.Event) {
	for _, ev := range events {
		switch {
		case inRange(ev.Timestamp, w.TrainStart, w.TrainEnd):
			train = append(train, ev)
		case inRange(ev.Timestamp, w.TestStart, w.TestEnd):
			test = append(test, ev)
		}
	}
	return train, test
}

// Span returns the first and last timestamps of an ordered event slice.
func Span(events []replay.Event) (first, last time.Time, ok bool) {
	if len(events) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return events[0].Timestamp, events[len(events)-1].Timestamp, true
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}
