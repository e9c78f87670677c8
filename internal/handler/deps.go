package handler

import (
	"relaychat/internal/app/relay"
	"relaychat/internal/configs"
)

// AppDeps carries what the HTTP handlers need.
type AppDeps struct {
	Hub    *relay.Hub
	Config *configs.AppConfig
}
