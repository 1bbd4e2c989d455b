package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zhongsurehow/zhouyi/internal/auth"
	"github.com/zhongsurehow/zhouyi/internal/catalog"
	"github.com/zhongsurehow/zhouyi/internal/mechanics"
	"github.com/zhongsurehow/zhouyi/internal/protocol"
	"github.com/zhongsurehow/zhouyi/internal/room"
)

func testRegistry(t *testing.T) *room.Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	opts := room.Options{
		HeartbeatInterval:    time.Hour,
		HeartbeatTimeoutMult: 3,
		DisconnectGrace:      time.Hour,
	}
	return room.NewRegistry(ctx, catalog.Default(), mechanics.ConservativePolicy{}, opts, 4, nil, nil, logger)
}

func createRoom(t *testing.T, reg *room.Registry) createRoomResponse {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	body := `{"players":[{"name":"Wei"},{"name":"Shan"}]}`
	r := httptest.NewRequest(http.MethodPost, "/room/create", strings.NewReader(body))
	w := httptest.NewRecorder()
	CreateRoomHandler(logger, reg)(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp createRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateRoomHandler(t *testing.T) {
	reg := testRegistry(t)
	resp := createRoom(t, reg)

	require.Len(t, resp.Players, 2)
	require.Equal(t, "Wei", resp.Players[0].Name)
	require.Equal(t, 0, resp.Players[0].Seat)
	require.Equal(t, 1, resp.Players[1].Seat)

	_, err := reg.Get(resp.RoomID)
	require.NoError(t, err)
}

func TestCreateRoomHandlerRejectsSmallRoster(t *testing.T) {
	reg := testRegistry(t)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	r := httptest.NewRequest(http.MethodPost, "/room/create", strings.NewReader(`{"players":[{"name":"Solo"}]}`))
	w := httptest.NewRecorder()
	CreateRoomHandler(logger, reg)(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndStateHandlers(t *testing.T) {
	reg := testRegistry(t)
	resp := createRoom(t, reg)

	w := httptest.NewRecorder()
	ListRoomsHandler(reg)(w, httptest.NewRequest(http.MethodGet, "/room/list", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), resp.RoomID.String())

	w = httptest.NewRecorder()
	stateURL := "/room/state/" + resp.RoomID.String()
	RoomStateHandler(reg)(w, httptest.NewRequest(http.MethodGet, stateURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), resp.Players[0].ID.String())

	w = httptest.NewRecorder()
	RoomStateHandler(reg)(w, httptest.NewRequest(http.MethodGet, "/room/state/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomWSHandshakeAndHeartbeat(t *testing.T) {
	require.NoError(t, auth.Init())
	reg := testRegistry(t)
	resp := createRoom(t, reg)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	srv := httptest.NewServer(RoomWSHandler(logger, reg))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + resp.RoomID.String()
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"zhouyi"},
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "done")

	// Initial join delivers the full snapshot.
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var msg protocol.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, protocol.MsgStateUpdate, msg.Type)
	require.NotNil(t, msg.State)

	// Heartbeats are acknowledged.
	hb, _ := json.Marshal(map[string]any{"action": protocol.ActionHeartbeat})
	require.NoError(t, c.Write(ctx, websocket.MessageText, hb))

	for {
		_, data, err = c.Read(ctx)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == protocol.MsgPlayerJoined {
			continue
		}
		require.Equal(t, protocol.MsgHeartbeatAck, msg.Type)
		break
	}
}

func TestRoomWSRejectsUnknownRoom(t *testing.T) {
	require.NoError(t, auth.Init())
	reg := testRegistry(t)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	srv := httptest.NewServer(RoomWSHandler(logger, reg))
	t.Cleanup(srv.Close)

	r, err := http.Post(srv.URL+"/room/ws/not-a-uuid", "text/plain", bytes.NewReader(nil))
	require.NoError(t, err)
	defer r.Body.Close()
	require.Equal(t, http.StatusBadRequest, r.StatusCode)
}
