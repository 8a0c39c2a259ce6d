package stream

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LiveChannel carries live-position updates for the admin map.
const LiveChannel = "live"

type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Channel string
	Send    chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(channel string) *Client {
	client := &Client{
		Channel: channel,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel] == nil {
		h.clients[channel] = map[*Client]struct{}{}
	}
	h.clients[channel][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if channelClients, ok := h.clients[client.Channel]; ok {
		delete(channelClients, client)
		if len(channelClients) == 0 {
			delete(h.clients, client.Channel)
		}
	}
	close(client.Send)
}

// Broadcast delivers payload to every subscriber of channel. With Redis
// configured the message is relayed through pub/sub so sibling processes
// fan out too; the local fan-out then happens via the subscription, keeping
// delivery single-path.
func (h *Hub) Broadcast(channel string, payload []byte) {
	if h.redis == nil {
		h.fanOut(channel, payload)
		return
	}

	err := h.redis.Publish(context.Background(), redisChannel(channel), payload).Err()
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("redis publish failed")
		h.fanOut(channel, payload)
	}
}

func (h *Hub) fanOut(channel string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[channel]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "fieldtrack:*:feed")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.fanOut(channelFromRedis(msg.Channel), []byte(msg.Payload))
	}
}

func redisChannel(channel string) string {
	return "fieldtrack:" + channel + ":feed"
}

func channelFromRedis(ch string) string {
	// fieldtrack:{channel}:feed
	const prefix = "fieldtrack:"
	const suffix = ":feed"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
