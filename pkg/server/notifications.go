package server

import (
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
)

// NotificationType names an outbound event.
type NotificationType string

const (
	NotificationTurnChanged   NotificationType = "turn_changed"
	NotificationStageAdvanced NotificationType = "stage_advanced"
	NotificationHandComplete  NotificationType = "hand_complete"
	NotificationHandStarted   NotificationType = "hand_started"
	NotificationPlayerJoined  NotificationType = "player_joined"
	NotificationHandAborted   NotificationType = "hand_aborted"
)

// Notification is one event pushed to clients.
type Notification struct {
	Type      NotificationType `json:"type"`
	TableID   string           `json:"tableId"`
	Payload   interface{}      `json:"payload,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type wsStream struct {
	playerID string
	conn     *websocket.Conn
	send     chan Notification
	done     chan struct{}
	once     sync.Once
}

func (s *wsStream) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Notifier fans notifications out to connected players over websocket
// streams. Sends are non-blocking; a slow client drops events rather than
// stalling the engine.
type Notifier struct {
	log     slog.Logger
	mu      sync.RWMutex
	streams map[string]*wsStream
}

// NewNotifier creates a notifier.
func NewNotifier(log slog.Logger) *Notifier {
	if log == nil {
		log = slog.Disabled
	}
	return &Notifier{
		log:     log,
		streams: make(map[string]*wsStream),
	}
}

// Register attaches a player's websocket connection, replacing any previous
// stream for the same player.
func (n *Notifier) Register(playerID string, conn *websocket.Conn) {
	stream := &wsStream{
		playerID: playerID,
		conn:     conn,
		send:     make(chan Notification, 64),
		done:     make(chan struct{}),
	}

	n.mu.Lock()
	if old, ok := n.streams[playerID]; ok {
		old.close()
	}
	n.streams[playerID] = stream
	n.mu.Unlock()

	go n.writeLoop(stream)
}

// Unregister drops a player's stream.
func (n *Notifier) Unregister(playerID string) {
	n.mu.Lock()
	if stream, ok := n.streams[playerID]; ok {
		stream.close()
		delete(n.streams, playerID)
	}
	n.mu.Unlock()
}

func (n *Notifier) writeLoop(stream *wsStream) {
	for {
		select {
		case <-stream.done:
			return
		case notif := <-stream.send:
			if err := stream.conn.WriteJSON(notif); err != nil {
				n.log.Debugf("notifier: write to %s failed: %v", stream.playerID, err)
				stream.close()
				return
			}
		}
	}
}

// NotifyPlayer queues a notification for one player.
func (n *Notifier) NotifyPlayer(playerID string, notif Notification) {
	n.mu.RLock()
	stream, ok := n.streams[playerID]
	n.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case <-stream.done:
	case stream.send <- notif:
	default:
		n.log.Warnf("notifier: dropping %s for slow client %s", notif.Type, playerID)
	}
}

// NotifyPlayers queues a notification for each listed player.
func (n *Notifier) NotifyPlayers(playerIDs []string, notif Notification) {
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}
	for _, id := range playerIDs {
		n.NotifyPlayer(id, notif)
	}
}
