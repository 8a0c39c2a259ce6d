package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes the live feed. Clients subscribe to a channel
// ("live" for the admin map, or a session id for a single route) and
// receive position updates as JSON text frames.
func RegisterRoutes(r fiber.Router, hub *Hub, middleware ...fiber.Handler) {
	handlers := append([]fiber.Handler{}, middleware...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	handlers = append(handlers, websocket.New(func(c *websocket.Conn) {
		channel := c.Params("channel")
		client := hub.Register(channel)
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		// Inbound frames are ignored; the read loop only detects disconnects.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}))
	r.Get("/ws/:channel", handlers...)
}
