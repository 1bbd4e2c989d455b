// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhongsurehow/zhouyi/internal/auth"
	"github.com/zhongsurehow/zhouyi/internal/middleware"
	"github.com/zhongsurehow/zhouyi/internal/protocol"
	"github.com/zhongsurehow/zhouyi/internal/room"
)

const roomSubprotocol = "zhouyi"

// writeTimeout bounds a single outbound frame.
const writeTimeout = 3 * time.Second

// RoomWSHandler upgrades the HTTP connection to WebSocket for one room.
// It authenticates the caller, attaches the connection to the room lane,
// and then blocks in the read loop until the client goes away.
func RoomWSHandler(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /room/ws/{room_id}
		idStr := strings.TrimPrefix(r.URL.Path, "/room/ws/")
		if i := strings.IndexByte(idStr, '/'); i >= 0 {
			idStr = idStr[:i]
		}
		roomID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid room_id in path (/room/ws/{room_id})", http.StatusBadRequest)
			return
		}

		rm, err := reg.Get(roomID)
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		// Identity is resolved before the upgrade so a fresh guest's
		// cookie rides the 101 response.
		playerID, err := auth.EnsureGuest(w, r)
		if err != nil {
			logger.Warnf("authentication failed for room %s: %v", roomID, err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{roomSubprotocol},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

		if c.Subprotocol() != roomSubprotocol {
			logger.Warnf("client for room %s connected with invalid subprotocol: %s", roomID, c.Subprotocol())
			c.Close(websocket.StatusCode(BadSubprotocolError), "client must use the 'zhouyi' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client := &room.Client{
			PlayerID: playerID,
			Cancel:   cancel,
			OutChan:  make(chan protocol.ServerMessage, 32),
		}
		if err := rm.Join(client); err != nil {
			logger.Warnf("join failed for player %s in room %s: %v", playerID, roomID, err)
			c.Close(websocket.StatusCode(InvalidRoomIDError), "unable to join room")
			return
		}

		go writePump(ctx, c, client, logger)

		readErr := readMessages(ctx, c, rm, client, logger)

		rm.Leave(playerID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// writePump drains the client's outbound channel onto the socket.
func writePump(ctx context.Context, c *websocket.Conn, client *room.Client, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Errorf("failed to marshal %s message for player %s: %v", msg.Type, client.PlayerID, err)
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				logger.Warnf("failed to write %s message to player %s: %v", msg.Type, client.PlayerID, err)
				return
			}
		}
	}
}

// readMessages blocks reading client frames until the socket closes or
// the context is cancelled. Malformed frames are answered with an error
// message; the connection stays up.
func readMessages(ctx context.Context, c *websocket.Conn, rm *room.Room, client *room.Client, logger *logrus.Logger) error {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return err
		}

		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			sendWsError(client, err)
			continue
		}

		if env.Action == protocol.ActionHeartbeat {
			rm.Heartbeat(client.PlayerID)
			continue
		}

		action, err := protocol.ParseAction(env)
		if err != nil {
			sendWsError(client, err)
			continue
		}

		// Identity comes from the session, never from the frame.
		logger.Debugf("player %s submitted %s to room %s", client.PlayerID, env.Action, rm.ID)
		rm.Submit(client.PlayerID, action)
	}
}

func sendWsError(client *room.Client, err error) {
	kind := "InvalidAction"
	if errors.Is(err, protocol.ErrProtocol) {
		kind = "ProtocolError"
	}
	select {
	case client.OutChan <- protocol.Error(kind, err.Error()):
	default:
	}
}
