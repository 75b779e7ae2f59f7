package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, controls CallControls) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		greeting := []any{ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		}}
		if controls.Current != nil {
			if snap, ok := controls.Current(); ok {
				greeting = append(greeting, StatusEvent{
					Event:  newEvent("status", time.Now().UTC()),
					Status: string(snap.Status),
				})
			}
		}
		for _, event := range greeting {
			payload, err := json.Marshal(event)
			if err == nil {
				_ = conn.WriteMessage(websocket.TextMessage, payload)
			}
		}

		// Drain client frames so close handshakes are noticed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}
