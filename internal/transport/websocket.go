package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/bus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// writeDeadline bounds how long a single frame write may block a slow
// client, mirroring the teacher's websocket.go Hub.
const writeDeadline = 5 * time.Second

// streamHandler upgrades the connection and pipes one of the three realtime
// channels of spec §4.7 (a table, one agent's private channel, or the
// single global duel channel) straight from internal/bus to the socket.
// ?channel=table&id=<uuid> | ?channel=agent (authenticated caller's own
// private channel) | ?channel=duel
func streamHandler(b *bus.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sub *bus.Subscription

		switch c.Query("channel") {
		case "table":
			tableID, err := uuid.Parse(c.Query("id"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing table id"})
				return
			}
			sub = b.SubscribeTable(tableID)

		case "agent":
			a, ok := callerAgent(c)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "the private channel requires authentication"})
				return
			}
			sub = b.SubscribeAgent(a.ID)

		case "duel":
			sub = b.SubscribeDuels()

		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be one of table, agent, duel"})
			return
		}
		defer sub.Unsubscribe()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("transport: websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Drain inbound frames only to notice disconnects; this stream is
		// push-only.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					sub.Unsubscribe()
					return
				}
			}
		}()

		for ev := range sub.Events() {
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("transport: dropping unmarshalable event on %s: %v", ev.Channel, err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
