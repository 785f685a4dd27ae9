// Package events provides filtering over the session operation stream for
// subscribers such as the websocket feed.
package events

import (
	"github.com/kode4food/timebox"

	"github.com/weftlabs/weft/pkg/api"
	"github.com/weftlabs/weft/pkg/events"
)

// EventFilter decides whether a stream subscriber sees an event
type EventFilter func(*timebox.Event) bool

// FilterEvents matches events by operation type
func FilterEvents(eventTypes ...api.EventType) EventFilter {
	lookup := map[timebox.EventType]bool{}
	for _, et := range eventTypes {
		lookup[timebox.EventType(et)] = true
	}
	return func(ev *timebox.Event) bool {
		return lookup[ev.Type]
	}
}

// FilterSession matches all operations of one session
func FilterSession(id api.SessionID) EventFilter {
	return func(ev *timebox.Event) bool {
		if !events.IsSessionEvent(ev) {
			return false
		}
		return ev.AggregateID[1] == timebox.ID(id)
	}
}

// FilterSessions matches operations of any session aggregate
func FilterSessions() EventFilter {
	return events.IsSessionEvent
}

// AndFilters matches when every inner filter matches
func AndFilters(filters ...EventFilter) EventFilter {
	return func(ev *timebox.Event) bool {
		for _, filter := range filters {
			if !filter(ev) {
				return false
			}
		}
		return true
	}
}

// OrFilters matches when any inner filter matches
func OrFilters(filters ...EventFilter) EventFilter {
	return func(ev *timebox.Event) bool {
		for _, filter := range filters {
			if filter(ev) {
				return true
			}
		}
		return false
	}
}
