package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/game-leaderboard/internal/domain"
)

// Message types
const (
	MessageTypeStatsSummary = "stats_summary"
	MessageTypeGameStats    = "game_stats"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
)

// ErrHubStopped is returned when notifying a hub that no longer runs
var ErrHubStopped = errors.New("websocket hub stopped")

// ErrBroadcastFull is returned when the broadcast queue cannot take a summary
var ErrBroadcastFull = errors.New("broadcast queue full")

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	GameID    string      `json:"gameId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SummaryUpdate is sent to every client after a stats run
type SummaryUpdate struct {
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	GamesProcessed int    `json:"gamesProcessed"`
	TotalScores    int    `json:"totalScores"`
}

// Hub tracks connected clients and their game subscriptions, and fans stats
// summaries out to them.
type Hub struct {
	// Subscribed clients by game ID
	games map[string]map[*Client]bool

	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan []*Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	gameID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		games:       make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []*Message, 16),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.allClients[req.client]; ok {
				if _, ok := h.games[req.gameID]; !ok {
					h.games[req.gameID] = make(map[*Client]bool)
				}
				h.games[req.gameID][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "game_id", req.gameID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.games[req.gameID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.games, req.gameID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "game_id", req.gameID)

		case batch := <-h.broadcast:
			for _, message := range batch {
				h.broadcastMessage(message)
			}
		}
	}
}

// Stop stops the hub and disconnects every client
func (h *Hub) Stop() {
	h.cancel()
}

// dropLocked removes a client from every index. Caller holds mu.
func (h *Hub) dropLocked(client *Client) {
	delete(h.allClients, client)
	for gameID, clients := range h.games {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.games, gameID)
			}
		}
	}
	close(client.send)
}

// closeAll disconnects every client. Send channels stay open since read pumps
// may still be replying; write pumps exit on the hub context.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.allClients {
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.allClients, client)
	}
	h.games = make(map[string]map[*Client]bool)
}

// broadcastMessage sends a game message to its subscribers, anything else to everyone
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.allClients
	if message.GameID != "" {
		targets = h.games[message.GameID]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// Notify queues a summary for every client and one game_stats message per game
// for that game's subscribers. Delivery to individual clients is best effort.
func (h *Hub) Notify(ctx context.Context, summary domain.StatsSummary) error {
	now := time.Now().UTC()
	batch := []*Message{{
		Type: MessageTypeStatsSummary,
		Data: SummaryUpdate{
			Subject:        summary.Subject,
			Body:           summary.Body,
			GamesProcessed: summary.Result.GamesProcessed,
			TotalScores:    summary.Result.TotalScores,
		},
		Timestamp: now,
	}}

	gameIDs := make([]string, 0, len(summary.Result.GameStats))
	for id := range summary.Result.GameStats {
		gameIDs = append(gameIDs, id)
	}
	sort.Strings(gameIDs)
	for _, id := range gameIDs {
		batch = append(batch, &Message{
			Type:      MessageTypeGameStats,
			GameID:    id,
			Data:      summary.Result.GameStats[id],
			Timestamp: now,
		})
	}

	if h.ctx.Err() != nil {
		return ErrHubStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.broadcast <- batch:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a game subscription
func (h *Hub) Subscribe(client *Client, gameID string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, gameID: gameID}:
	case <-h.ctx.Done():
	}
}

// Unsubscribe removes a client from a game subscription
func (h *Hub) Unsubscribe(client *Client, gameID string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, gameID: gameID}:
	case <-h.ctx.Done():
	}
}

// SubscriberCount returns the number of subscribers for a game
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}

// TotalConnections returns the number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
