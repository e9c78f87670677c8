package handler

import (
	"context"
	"net/http"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

// HealthData is the payload of GET /health.
type HealthData struct {
	Status      string   `json:"status"`
	Service     string   `json:"service"`
	Users       []string `json:"users"`
	Connections int      `json:"connections"`
}

// HandleHealth reports liveness together with the hub's current presence.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		presence, err := deps.Hub.Presence(ctx)
		if err != nil {
			logx.Warn("Health check failed: presence unavailable.", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrHubStopped))
			return
		}

		resp.RespondSuccess(w, r, HealthData{
			Status:      "ok",
			Service:     ServiceName,
			Users:       presence.Users,
			Connections: presence.Count,
		})
	}
}
