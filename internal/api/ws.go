package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamEvents обрабатывает GET /api/v1/events/ws.
//
// Поднимает WebSocket и транслирует клиенту события оркестратора
// (pipeline.* и execution.*) в JSON. Query-параметр pipeline_id
// фильтрует поток по одному pipeline. Соединение живёт, пока клиент
// не закроет его или не упадёт запись.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	var filter uuid.UUID
	if raw := r.URL.Query().Get("pipeline_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, "invalid pipeline_id parameter")
			return
		}
		filter = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.orch.Bus().Subscribe(64)
	defer sub.Unsubscribe()

	h.logger.Info("websocket client connected",
		"remote", r.RemoteAddr, "pipeline_id", filter)

	// Reader нужен только чтобы заметить закрытие со стороны клиента.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if filter != uuid.Nil && ev.PipelineID != filter {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed, closing",
					"remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
