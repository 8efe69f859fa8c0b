package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// GlobalTopic receives every broadcast regardless of server.
const GlobalTopic = "global"

type targeted struct {
	serverID string
	message  []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	broadcast chan []byte

	// Outbound messages for clients subscribed to one server.
	broadcastTo chan targeted

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// A map of server IDs to a set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan []byte, 256),
		broadcastTo:   make(chan targeted, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	h.running.Store(true)
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
			if client.ServerID != "" && client.ServerID != GlobalTopic {
				h.addSubscription(client, client.ServerID)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		case t := <-h.broadcastTo:
			for client := range h.subscriptions[t.serverID] {
				h.deliver(client, t.message)
			}
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// Stop terminates Run and disconnects every client. When Run is active it
// returns after every client has been closed.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	if h.running.Load() {
		<-h.stopped
	}
}

// Register adds a client. After Stop the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client. It never blocks once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a message for every connected client. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Publish(action string, payload interface{}) {
	msg, ok := encode(action, payload)
	if !ok {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Str("action", action).Msg("Websocket broadcast queue full, dropping message")
	}
}

// PublishTo queues a message for the clients watching serverID.
func (h *Hub) PublishTo(serverID, action string, payload interface{}) {
	msg, ok := encode(action, payload)
	if !ok {
		return
	}
	select {
	case h.broadcastTo <- targeted{serverID: serverID, message: msg}:
	default:
		log.Warn().Str("action", action).Str("server_id", serverID).Msg("Websocket broadcast queue full, dropping message")
	}
}

func encode(action string, payload interface{}) ([]byte, bool) {
	msg, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Error marshalling websocket message")
		return nil, false
	}
	return msg, true
}

func (h *Hub) deliver(client *Client, message []byte) {
	if !client.Enqueue(message) {
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, serverID string) {
	if h.subscriptions[serverID] == nil {
		h.subscriptions[serverID] = make(map[*Client]bool)
	}
	h.subscriptions[serverID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for serverID, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, serverID)
			}
		}
	}
}
