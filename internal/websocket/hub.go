package websocket

import "github.com/rs/zerolog/log"

// Topics clients can subscribe to.
const (
	// TopicEvents carries audit log events as they are recorded.
	TopicEvents = "events"
	// TopicStats carries periodic host resource snapshots.
	TopicStats = "stats"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Inbound messages for global broadcast.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Topic-scoped messages, drained by Run so subscription state is only
	// touched from one goroutine.
	topicBroadcast chan topicMessage

	// A map of topics to the set of clients subscribed to each.
	subscriptions map[string]map[*Client]bool
}

type topicMessage struct {
	topic   string
	payload []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:      make(chan []byte),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		topicBroadcast: make(chan topicMessage, 64),
		clients:        make(map[*Client]bool),
		subscriptions:  make(map[string]map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
			// If the client asked for a topic on registration, subscribe it.
			if client.Topic != "" {
				h.addSubscription(client, client.Topic)
			}
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				// Remove from global clients and any subscriptions
				delete(h.clients, client)
				client.shutdown()
				h.removeSubscription(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					client.shutdown()
					delete(h.clients, client)
					h.removeSubscription(client)
				}
			}
		case msg := <-h.topicBroadcast:
			for client := range h.subscriptions[msg.topic] {
				select {
				case client.Send <- msg.payload:
				default:
					client.shutdown()
					delete(h.clients, client)
					h.removeSubscription(client)
				}
			}
		}
	}
}

// BroadcastTo sends a message to all clients subscribed to a topic. The
// message is dropped when the hub's queue is full rather than blocking the
// caller.
func (h *Hub) BroadcastTo(topic string, message []byte) {
	select {
	case h.topicBroadcast <- topicMessage{topic: topic, payload: message}:
	default:
		log.Warn().Str("topic", topic).Msg("Hub broadcast queue full, dropping message")
	}
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for topic, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
}
