package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"signal-engine/internal/events"
	"signal-engine/internal/market"
	"signal-engine/internal/sim"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// monitorSocket streams every engine signal to observers via the event bus.
func (s *Server) monitorSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.Subscribe(events.TopicSignal, 100)
	defer unsub()

	for msg := range stream {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

// simMessage is one inbound frame on the simulate socket.
type simMessage struct {
	Type string `json:"type"` // config | bar | sentiment | done

	Config *sim.Config `json:"config,omitempty"`
	Bar    *market.Bar `json:"bar,omitempty"`

	Ticker      string  `json:"ticker,omitempty"`
	Sentiment   float64 `json:"sentiment,omitempty"`
	EventImpact float64 `json:"event_impact,omitempty"`
}

// simulateSocket is the bidirectional streaming entry point: bars in,
// signals out, one session per connection. The bounded out channel gives
// backpressure against slow clients; closing the socket cancels the run.
func (s *Server) simulateSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// An optional leading config frame selects the model generation for
	// this stream; anything else starts the run with server defaults.
	cfg := s.Defaults
	var first *simMessage
	var msg simMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Type == "config" && msg.Config != nil {
		cfg = s.resolveConfig(msg.Config)
	} else {
		first = &msg
	}

	session, err := s.Engine.OpenSession(cfg)
	if err != nil {
		_ = conn.WriteJSON(gin.H{"error": err.Error()})
		return
	}

	in := make(chan market.Bar)
	out := make(chan sim.Signal, 64)
	runDone := make(chan error, 1)

	go func() {
		runDone <- session.Run(ctx, in, out)
	}()

	// Reader: socket frames -> bar channel / sentiment updates.
	go func() {
		defer close(in)
		handle := func(m simMessage) bool {
			switch m.Type {
			case "bar":
				if m.Bar == nil {
					return true
				}
				select {
				case in <- *m.Bar:
				case <-ctx.Done():
					return false
				}
			case "sentiment":
				session.SetSentiment(m.Ticker, m.Sentiment, m.EventImpact)
			case "done":
				return false
			}
			return true
		}

		if first != nil && !handle(*first) {
			return
		}
		for {
			var m simMessage
			if err := conn.ReadJSON(&m); err != nil {
				cancel() // client went away; stop flushing signals
				return
			}
			if !handle(m) {
				return
			}
		}
	}()

	// Writer: signal channel -> socket, in per-ticker emission order.
	for sig := range out {
		if err := conn.WriteJSON(sig); err != nil {
			cancel()
			break
		}
	}
	for range out {
	}

	if err := <-runDone; err != nil {
		log.Printf("simulate session %s ended: %v", session.ID(), err)
	}
}
