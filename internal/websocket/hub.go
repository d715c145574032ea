package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/smukkama/landslide-monitor/internal/alarming"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/metrics"
	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/refresh"
	"github.com/smukkama/landslide-monitor/internal/risk"
)

// Frame types sent to dashboards.
const (
	TypeSnapshot = "snapshot"
	TypeAlert    = "alert"
)

// Frame is the envelope of every message sent to a client.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SnapshotPayload is the dashboard view of a refresh snapshot. Window
// entries use the same shape as /api/sensor-data.
type SnapshotPayload struct {
	Site            string                 `json:"site"`
	Cycle           uint64                 `json:"cycle"`
	Level           risk.Level             `json:"level"`
	CriticalFactors []reading.Name         `json:"criticalFactors"`
	Available       int                    `json:"available"`
	Stale           bool                   `json:"stale"`
	Failures        int                    `json:"failures"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	Window          []*protocol.SensorData `json:"window"`
}

// NewSnapshotPayload converts a snapshot for the wire.
func NewSnapshotPayload(snap refresh.Snapshot) SnapshotPayload {
	window := make([]*protocol.SensorData, len(snap.Window))
	for i, r := range snap.Window {
		window[i] = protocol.NewSensorData(r)
	}
	factors := snap.Assessment.CriticalFactors
	if factors == nil {
		factors = []reading.Name{}
	}
	return SnapshotPayload{
		Site:            snap.Site,
		Cycle:           snap.Cycle,
		Level:           snap.Level,
		CriticalFactors: factors,
		Available:       snap.Assessment.Available,
		Stale:           snap.Stale,
		Failures:        snap.Failures,
		UpdatedAt:       snap.UpdatedAt,
		Window:          window,
	}
}

// Hub maintains the set of active clients and broadcasts frames.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// last is sent to clients as soon as they connect.
	last []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	log := logger.WithComponent("websocket")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.last != nil {
				select {
				case client.send <- h.last:
				default:
				}
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			log.Info().Str("client_id", client.id).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				log.Info().Str("client_id", client.id).Msg("client unregistered")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Warn().Str("client_id", client.id).Msg("client send buffer full, removing")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts a snapshot frame, followed by an alert frame when the
// snapshot carries an action. It never blocks the caller: frames are dropped
// when the hub is backed up.
func (h *Hub) Publish(ctx context.Context, snap refresh.Snapshot) error {
	message, err := json.Marshal(Frame{Type: TypeSnapshot, Payload: NewSnapshotPayload(snap)})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	h.mu.Lock()
	h.last = message
	h.mu.Unlock()

	if err := h.enqueue(message); err != nil {
		return err
	}

	if snap.Action != nil {
		return h.BroadcastAlert(snap.Action)
	}
	return nil
}

// BroadcastAlert sends an alert frame to all clients.
func (h *Hub) BroadcastAlert(action *alarming.Action) error {
	message, err := json.Marshal(Frame{Type: TypeAlert, Payload: action})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return h.enqueue(message)
}

func (h *Hub) enqueue(message []byte) error {
	select {
	case h.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("broadcast queue full")
	}
}
