package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verdantlabs/seedbank/pkg/application"
)

// StreamController exposes the websocket endpoint progress events are
// broadcast on.
type StreamController struct {
	app application.Application
}

func NewStreamController(app application.Application) application.Controller {
	return &StreamController{app: app}
}

func (c *StreamController) Key() string {
	return "/imports/stream"
}

func (c *StreamController) Register(r *mux.Router) {
	r.Handle("/imports/stream", c.app.Websocket()).Methods(http.MethodGet)
}
