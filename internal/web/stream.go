package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// handlePriceStream pushes a snapshot of all prices, then every accepted quote as SSE events.
func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.gw.SubscribePrices()
	defer sub.Close()
	s.logger.Debug("price stream opened", zap.String("subscriber", sub.ID()), zap.String("remote", r.RemoteAddr))
	defer func() {
		s.logger.Debug("price stream closed", zap.String("subscriber", sub.ID()), zap.Uint64("dropped", sub.Dropped()))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	send := func(event string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send("snapshot", pricesMap(s.gw.Prices())); err != nil {
		s.logger.Debug("price stream initial snapshot", zap.String("subscriber", sub.ID()), zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				s.logger.Debug("price stream heartbeat", zap.String("subscriber", sub.ID()), zap.Error(err))
				return
			}
			flusher.Flush()
		case q, ok := <-sub.C():
			if !ok {
				return
			}
			if err := send("price", newQuoteDTO(q)); err != nil {
				s.logger.Debug("price stream write", zap.Error(err))
				return
			}
		}
	}
}

// handlePriceSocket pushes the current prices, then every accepted quote, over a websocket.
func (s *Server) handlePriceSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.gw.SubscribePrices()
	defer sub.Close()
	s.logger.Debug("price socket opened", zap.String("subscriber", sub.ID()), zap.String("remote", r.RemoteAddr))
	defer func() {
		s.logger.Debug("price socket closed", zap.String("subscriber", sub.ID()), zap.Uint64("dropped", sub.Dropped()))
	}()

	// the reader only drains control frames and notices when the client goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v)
	}

	for _, q := range s.gw.Prices() {
		if err := write(newQuoteDTO(q)); err != nil {
			return
		}
	}

	ping := time.NewTicker(s.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case q, ok := <-sub.C():
			if !ok {
				return
			}
			if err := write(newQuoteDTO(q)); err != nil {
				s.logger.Debug("price socket write", zap.Error(err))
				return
			}
		}
	}
}
