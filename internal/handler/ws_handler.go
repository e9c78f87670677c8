/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains HandleWebSocket, which upgrades the HTTP connection, hands the
new connection to the Hub and runs its read and write pumps. Identity is not part
of the upgrade; it arrives later in the join frame.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"relaychat/internal/app/relay"
	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	opts := relay.ClientOptions{
		MaxMessageSize: deps.Config.MaxMessageSize,
		MessageRate:    rate.Limit(deps.Config.MessageRate),
		MessageBurst:   deps.Config.MessageBurst,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ip := logx.AnonymizeIP(limiter.ClientIP(r))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response.
			logx.Warn("Failed to upgrade connection to WebSocket", "remote_ip", ip, "error", err.Error())
			return
		}

		client := relay.NewClient(deps.Hub, conn, opts)

		if err := deps.Hub.Connect(client); err != nil {
			logx.Warn("WebSocket connection rejected: hub is stopped.", "peer_id", client.ID())
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			_ = conn.Close()
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established", "peer_id", client.ID(), "remote_ip", ip)

		client.ReadPump()
	}
}
