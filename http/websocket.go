package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsMaxMessage = 64 * 1024
)

// wsPingPeriod 默认心跳间隔，必须小于 wsPongWait
const wsPingPeriod = (wsPongWait * 9) / 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsReply 与 POST /predict 相同的响应体，外加HTTP状态码
type wsReply struct {
	Status int `json:"status"`
	*PredictResponse
	*ErrorResponse
}

// handleWebSocket 每条 {"url": ...} 消息返回一条预测结果
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, done)

	ctx := r.Context()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var reply wsReply
		var req PredictRequest
		if err := json.Unmarshal(message, &req); err != nil {
			reply = wsReply{Status: errMissingURL.Status, ErrorResponse: &errMissingURL.Body}
		} else if resp, apiErr := h.classify(ctx, req.URL); apiErr != nil {
			reply = wsReply{Status: apiErr.Status, ErrorResponse: &apiErr.Body}
		} else {
			reply = wsReply{Status: http.StatusOK, PredictResponse: &resp}
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

// pingLoop 定时发送心跳，客户端的 pong 会延长读超时
func (h *Handler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// WriteControl 可与 WriteJSON 并发调用
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				h.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}
