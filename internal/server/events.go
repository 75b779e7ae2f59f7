package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type StatusEvent struct {
	Event
	Status string `json:"status"`
}

type TranscriptEvent struct {
	Event
	Role string `json:"role"`
	Text string `json:"text"`
}

type GeneratingEvent struct {
	Event
	Generating bool `json:"generating"`
}

type NoticeEvent struct {
	Event
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NavigateEvent struct {
	Event
	Path string `json:"path"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
