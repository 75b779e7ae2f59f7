package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

// Hub fans call signals out to websocket clients. It implements call.UI.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

var _ call.UI = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Broadcast never blocks; a client whose buffer is full misses msg.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastStatus(status call.Status) {
	h.broadcastEvent(StatusEvent{
		Event:  newEvent("status", time.Now().UTC()),
		Status: string(status),
	})
}

func (h *Hub) BroadcastTranscript(entry transcript.Entry) {
	h.broadcastEvent(TranscriptEvent{
		Event: newEvent("transcript", entry.Timestamp),
		Role:  string(entry.Role),
		Text:  entry.Text,
	})
}

func (h *Hub) BroadcastGenerating(generating bool) {
	h.broadcastEvent(GeneratingEvent{
		Event:      newEvent("generating", time.Now().UTC()),
		Generating: generating,
	})
}

func (h *Hub) Notify(n call.Notice) {
	h.broadcastEvent(NoticeEvent{
		Event:   newEvent("notice", time.Now().UTC()),
		Level:   string(n.Level),
		Code:    n.Code,
		Message: n.Message,
	})
}

func (h *Hub) Navigate(path string) {
	h.broadcastEvent(NavigateEvent{
		Event: newEvent("navigate", time.Now().UTC()),
		Path:  path,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
