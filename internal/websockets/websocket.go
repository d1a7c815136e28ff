package websockets

import (
	"gekoimport/config"
	"gekoimport/internal/events"
	"sync"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	MESSAGE_TYPE_PING     = "ping"
	MESSAGE_TYPE_PONG     = "pong"
	MESSAGE_TYPE_ERROR    = "error"
	MESSAGE_TYPE_SNAPSHOT = "import_snapshot"
	PING_INTERVAL         = 30 * time.Second
	PONG_TIMEOUT          = 60 * time.Second
	WRITE_TIMEOUT         = 10 * time.Second
	MAX_MESSAGE_SIZE      = 4 * 1024
	SEND_CHANNEL_SIZE     = 64
	DISPATCH_CHANNEL_SIZE = 256
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel,omitempty"`
	JobID     string         `json:"jobId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Final reports whether the message is the last one a job will ever produce.
func (m Message) Final() bool {
	return m.Type == string(events.IMPORT_FINISHED)
}

// Conn is the part of a websocket connection the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadJSON(v any) error
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	ID         string
	JobID      uuid.UUID
	Connection Conn
	Manager    *Manager
	send       chan Message
}

// Manager pushes import job events to the websocket clients watching that job.
type Manager struct {
	hub       *Hub
	config    config.Config
	log       logger.Logger
	eventBus  *events.EventBus
	closeOnce sync.Once
}

func New(eventBus *events.EventBus, config config.Config) (*Manager, error) {
	log := logger.New("websockets")

	manager := &Manager{
		hub:      newHub(),
		config:   config,
		log:      log,
		eventBus: eventBus,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	if eventBus != nil {
		if err := eventBus.Subscribe(events.IMPORT_CHANNEL, manager.handleImportEvent); err != nil {
			manager.Close()
			return nil, log.Function("New").Err("failed to subscribe to import events", err)
		}
	}

	return manager, nil
}

// Close stops the hub. Connected clients have their send channels closed, which ends their
// write pumps with a close frame.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.hub.done)
	})
}

// HandleJobWatcher serves one connection that follows a single job. The snapshot, when
// given, is written first so the client never starts from an empty state.
func (m *Manager) HandleJobWatcher(c Conn, jobID uuid.UUID, snapshot *Message) {
	log := m.log.Function("HandleJobWatcher")

	client := &Client{
		ID:         uuid.New().String(),
		JobID:      jobID,
		Connection: c,
		Manager:    m,
		send:       make(chan Message, SEND_CHANNEL_SIZE),
	}

	if snapshot != nil {
		if err := c.WriteJSON(snapshot); err != nil {
			log.Er("failed to send job snapshot", err, "clientID", client.ID, "jobID", jobID)
			_ = c.Close()
			return
		}
		if snapshot.Final() {
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
			_ = c.Close()
			return
		}
	}

	if !m.hub.add(client) {
		_ = c.Close()
		return
	}
	log.Info("Client watching import job", "clientID", client.ID, "jobID", jobID)

	defer func() {
		m.hub.remove(client)
		_ = c.Close()
	}()

	go client.readPump()
	client.writePump()
}

func (m *Manager) handleImportEvent(event events.Event) error {
	if event.JobID == nil {
		return nil
	}

	message := Message{
		ID:        event.ID,
		Type:      string(event.Type),
		Channel:   event.Channel.String(),
		JobID:     event.JobID.String(),
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	m.hub.dispatchMessage(m, *event.JobID, message)
	return nil
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.remove(c)
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
			log.Er("failed to set read deadline in pong handler", err, "clientID", c.ID)
		}
		return nil
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			return
		}

		c.routeMessage(message)
	}
}

// routeMessage answers application level pings. Watchers have nothing else to say.
func (c *Client) routeMessage(message Message) {
	switch message.Type {
	case MESSAGE_TYPE_PING:
		c.queue(Message{
			ID:        uuid.New().String(),
			Type:      MESSAGE_TYPE_PONG,
			JobID:     c.JobID.String(),
			Timestamp: time.Now(),
		})
	default:
		c.Manager.log.Function("routeMessage").
			Debug("Ignoring client message", "clientID", c.ID, "type", message.Type)
	}
}

func (c *Client) queue(message Message) {
	c.Manager.hub.mutex.RLock()
	defer c.Manager.hub.mutex.RUnlock()

	if _, ok := c.Manager.hub.clients[c.ID]; !ok {
		return
	}

	select {
	case c.send <- message:
	default:
		c.Manager.log.Function("queue").Warn("Client send channel full, dropping message", "clientID", c.ID)
	}
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID, "type", message.Type)
				return
			}

			if message.Final() {
				_ = c.Connection.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
				)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
