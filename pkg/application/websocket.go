package application

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/verdantlabs/seedbank/pkg/ws"
)

const (
	// ChannelImports carries import lifecycle and progress events.
	ChannelImports string = "imports"
)

type HuberOptions struct {
	Logger      *logrus.Logger
	CheckOrigin func(r *http.Request) bool
}

type Huber interface {
	http.Handler
	BroadcastToChannel(channel string, message []byte)
}

func NewHub(opts *HuberOptions) Huber {
	appHub := &huber{logger: opts.Logger}
	hub := ws.NewHub(&ws.HubOptions{
		Logger:      opts.Logger,
		CheckOrigin: opts.CheckOrigin,
		OnConnect:   appHub.onConnect,
	})
	appHub.hub = hub
	return appHub
}

type huber struct {
	hub    *ws.Hub
	logger *logrus.Logger
}

func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

// Every client is subscribed to the imports channel, there is no
// authentication layer in front of the hub.
func (h *huber) onConnect(_ *http.Request, hub *ws.Hub, conn *ws.Connection) error {
	hub.JoinChannel(ChannelImports, conn)
	return nil
}

func (h *huber) BroadcastToChannel(channel string, message []byte) {
	h.hub.BroadcastToChannel(channel, message)
}
