package websockets

import (
	"sync"

	"github.com/google/uuid"
)

type dispatch struct {
	jobID   uuid.UUID
	message Message
}

type Hub struct {
	dispatch   chan dispatch
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	clients    map[string]*Client
	mutex      sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		dispatch:   make(chan dispatch, DISPATCH_CHANNEL_SIZE),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
	}
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)

		case client := <-h.unregister:
			m.unregisterClient(client)

		case d := <-h.dispatch:
			h.sendToWatchers(m, d.jobID, d.message)

		case <-h.done:
			m.unregisterAll()
			return
		}
	}
}

// add reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// dispatchMessage never blocks the publisher. A full dispatch queue drops the message.
func (h *Hub) dispatchMessage(m *Manager, jobID uuid.UUID, message Message) {
	select {
	case h.dispatch <- dispatch{jobID: jobID, message: message}:
	case <-h.done:
	default:
		m.log.Function("dispatchMessage").
			Warn("Dispatch queue full, dropping message", "jobID", jobID, "type", message.Type)
	}
}

func (m *Manager) registerClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	m.hub.clients[client.ID] = client
	m.log.Function("registerClient").
		Debug("Client registered", "clientID", client.ID, "jobID", client.JobID)
}

// unregisterClient is idempotent. Both pumps and the connection handler call it.
func (m *Manager) unregisterClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	if _, ok := m.hub.clients[client.ID]; !ok {
		return
	}

	delete(m.hub.clients, client.ID)
	close(client.send)
	m.log.Function("unregisterClient").
		Debug("Client unregistered", "clientID", client.ID, "jobID", client.JobID)
}

func (m *Manager) unregisterAll() {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	for id, client := range m.hub.clients {
		delete(m.hub.clients, id)
		close(client.send)
	}
}

func (h *Hub) sendToWatchers(m *Manager, jobID uuid.UUID, message Message) {
	log := m.log.Function("sendToWatchers")

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.JobID != jobID {
			continue
		}

		select {
		case client.send <- message:
			sent++
		default:
			log.Warn("Client too slow, disconnecting", "clientID", client.ID, "jobID", jobID)
			go h.remove(client)
		}
	}

	log.Debug("Message sent to job watchers", "jobID", jobID, "type", message.Type, "sentTo", sent)
}

// Watchers returns how many clients follow the job.
func (m *Manager) Watchers(jobID uuid.UUID) int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()

	count := 0
	for _, client := range m.hub.clients {
		if client.JobID == jobID {
			count++
		}
	}
	return count
}
