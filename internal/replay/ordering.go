package replay

import (
	"container/heap"
	"iter"
	"slices"

	"trident-trader/internal/domain"
)

// SortEvents orders events by timestamp, keeping the input order for equal timestamps.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// ValidateOrder returns ErrInvalidOrdering if timestamps ever decrease.
func ValidateOrder(events []Event) error {
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// Merge combines individually time-ordered streams into one time-ordered stream.
// Events with equal timestamps are yielded in stream index order, then in
// arrival order within a stream. At most one pending event per stream is held.
func Merge(streams ...iter.Seq[Event]) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		h := make(mergeHeap, 0, len(streams))
		nexts := make([]func() (Event, bool), len(streams))
		for i, s := range streams {
			next, stop := iter.Pull(s)
			defer stop()
			nexts[i] = next
			if ev, ok := next(); ok {
				h = append(h, mergeItem{event: ev, stream: i})
			}
		}
		heap.Init(&h)

		for h.Len() > 0 {
			item := h[0]
			if !yield(item.event) {
				return
			}
			if ev, ok := nexts[item.stream](); ok {
				h[0] = mergeItem{event: ev, stream: item.stream}
				heap.Fix(&h, 0)
			} else {
				heap.Pop(&h)
			}
		}
	}
}

// MergeEvents merges per-symbol bar streams and a news stream into a sorted slice.
// Bar streams come first in tie order, in the order given; news comes last.
func MergeEvents(bars [][]domain.Bar, news []domain.NewsEvent) []Event {
	streams := make([]iter.Seq[Event], 0, len(bars)+1)
	total := len(news)
	for _, bs := range bars {
		streams = append(streams, BarSeq(bs))
		total += len(bs)
	}
	streams = append(streams, NewsSeq(news))

	events := make([]Event, 0, total)
	for ev := range Merge(streams...) {
		events = append(events, ev)
	}
	return events
}

// BarSeq yields bars as events.
func BarSeq(bars []domain.Bar) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, b := range bars {
			if !yield(BarEvent(b)) {
				return
			}
		}
	}
}

// NewsSeq yields news observations as events.
func NewsSeq(news []domain.NewsEvent) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, n := range news {
			if !yield(NewsEventOf(n)) {
				return
			}
		}
	}
}

// SliceSeq yields events from a slice.
func SliceSeq(events []Event) iter.Seq[Event] {
	return slices.Values(events)
}

type mergeItem struct {
	event  Event
	stream int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	if c := h[i].event.Timestamp.Compare(h[j].event.Timestamp); c != 0 {
		return c < 0
	}
	return h[i].stream < h[j].stream
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(mergeItem)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
