package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trafficcast/predictor"
)

const (
	wsWriteWait = 10 * time.Second
	wsIdleWait  = 10 * time.Minute
	wsMaxBytes  = 64 << 10
)

// handleWS is the event-driven form channel: every text message is one
// predict action, answered in order on the same connection.
func (h *handlers) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxBytes)

	connID := GetRequestID(r.Context())
	logger := h.logger.With(zap.String("conn_id", connID))
	logger.Debug("predict channel opened")

	for {
		conn.SetReadDeadline(time.Now().Add(wsIdleWait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("predict channel read error", zap.Error(err))
			}
			return
		}

		var resp predictResponse
		var in predictor.Input
		if err := json.Unmarshal(data, &in); err != nil {
			resp = predictResponse{Message: "invalid message: " + err.Error(), Error: err.Error()}
		} else {
			id := uuid.NewString()
			res := h.svc.Predict(r.Context(), predictor.Request{
				ID:      id,
				Channel: predictor.ChannelWS,
				Input:   h.svc.Merge(in),
			})
			resp = newPredictResponse(id, res)
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			logger.Debug("predict channel write error", zap.Error(err))
			return
		}
	}
}
