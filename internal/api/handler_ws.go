package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from a different origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout  = 10 * time.Second
	wsSendQueueSize = 32
)

// wsChannel adapts a websocket connection to the presence.Channel contract.
// A single write pump drains the outbound queue, so events handed to TrySend
// reach the socket in order.
type wsChannel struct {
	id   string
	conn *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, wsSendQueueSize),
		done: make(chan struct{}),
	}
}

// TrySend queues a message without blocking. A full queue or a closed
// connection drops the message.
func (ch *wsChannel) TrySend(msg []byte) bool {
	select {
	case <-ch.done:
		return false
	case ch.out <- msg:
		return true
	default:
		return false
	}
}

func (ch *wsChannel) close() {
	ch.closeOnce.Do(func() {
		close(ch.done)
		ch.conn.Close()
	})
}

func (ch *wsChannel) writePump() {
	for {
		select {
		case <-ch.done:
			return
		case msg := <-ch.out:
			ch.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ch.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				ch.close()
				return
			}
		}
	}
}

// wsClientMessage is what a connected client may send us. The only message
// today is the identity announcement.
type wsClientMessage struct {
	Event  string `json:"event"`
	UserID int64  `json:"userId"`
}

// Socket upgrades the connection and runs the presence protocol: the client
// announces its identity with add_user, and a disconnect unregisters exactly
// the channel this connection registered.
func (h *Handler) Socket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	ch := newWSChannel(conn)
	go ch.writePump()

	var registeredUser int64
	defer func() {
		ch.close()
		if registeredUser != 0 {
			h.presence.Unregister(registeredUser, ch.id)
		}
	}()

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Event {
		case "add_user":
			user, err := h.store.GetUser(c.Request.Context(), msg.UserID)
			if err != nil {
				log.Printf("ws: add_user for unknown user %d: %v", msg.UserID, err)
				continue
			}
			h.presence.Register(user.ID, ch.id, user.Name, ch)
			registeredUser = user.ID
		default:
			log.Printf("ws: ignoring unknown event %q from channel %s", msg.Event, ch.id)
		}
	}
}
