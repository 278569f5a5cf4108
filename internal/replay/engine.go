package replay

import (
	"context"
	"time"

	"trident-trader/internal/domain"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypeBar  EventType = "bar"
	EventTypeNews EventType = "news"
)

// Event represents a unified event for replay (bar or news).
// Only one of Bar or News will be set based on Type.
type Event struct {
	Type      EventType
	Timestamp time.Time // UTC
	Bar       *domain.Bar
	News      *domain.NewsEvent
}

// BarEvent wraps a bar. The timestamp is normalized to UTC.
func BarEvent(b domain.Bar) Event {
	b.TsEnd = b.TsEnd.UTC()
	return Event{Type: EventTypeBar, Timestamp: b.TsEnd, Bar: &b}
}

// NewsEventOf wraps a news observation. The timestamp is normalized to UTC.
func NewsEventOf(n domain.NewsEvent) Event {
	n.Ts = n.Ts.UTC()
	return Event{Type: EventTypeNews, Timestamp: n.Ts, News: &n}
}

// ReplayEngine processes events in deterministic order.
type ReplayEngine interface {
	// OnEvent is called for each event in order.
	// Events are guaranteed to be non-decreasing in Timestamp.
	OnEvent(ctx context.Context, event *Event) error
}

// Finisher is implemented by engines that hold partial state at end of stream.
type Finisher interface {
	Finish(ctx context.Context) error
}
