package handlers

import (
	"live-auction/internal/infrastructure/websocket"

	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
)

// WebSocketHandlers serves the gorilla session transport from the echo server.
type WebSocketHandlers struct {
	router *mux.Router
}

func NewWebSocketHandlers(wsHandler *websocket.Handler) *WebSocketHandlers {
	router := mux.NewRouter()
	wsHandler.Routes(router)
	return &WebSocketHandlers{router: router}
}

func (h *WebSocketHandlers) Register(e *echo.Echo) {
	e.GET("/ws", echo.WrapHandler(h.router))
	e.GET("/ws/*", echo.WrapHandler(h.router))
}
