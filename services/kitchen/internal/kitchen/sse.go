package kitchen

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/comanda/pkg/event"
)

const sseKeepalive = 30 * time.Second

// StreamOrders serves kitchen events as Server-Sent Events. New screens
// first receive every order currently on display.
func (h *Handler) StreamOrders(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID, events := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)

	for _, p := range h.display.Orders() {
		evt := newKitchenEvent(event.EventKitchenOrderArrived, p, h.completer.Status(p.ID))
		if err := sendSSEEvent(w, evt); err != nil {
			log.Error("failed to send initial order", "subscriber_id", subscriberID, "error", err)
			return
		}
	}

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case evt, ok := <-events:
			if !ok {
				log.Info("kitchen event channel closed", "subscriber_id", subscriberID)
				return
			}
			if err := sendSSEEvent(w, evt); err != nil {
				log.Error("failed to send event", "subscriber_id", subscriberID, "error", err)
				return
			}
		}
	}
}

// sendSSEEvent writes evt as JSON, one data line per payload line.
func sendSSEEvent(w http.ResponseWriter, evt event.KitchenOrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", evt.EventType); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n"); err != nil {
		return err
	}

	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
