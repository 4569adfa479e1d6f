package offline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
)

// NewProxy returns a handler that reverse-proxies upstream through c and
// exposes the client message and event endpoints:
//
//	POST /__sw/message  JSON Message body
//	GET  /__sw/events   server-sent events
func NewProxy(c *Controller, upstream *url.URL) http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport: c,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("proxy error", "path", r.URL.Path, "err", err)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /__sw/message", c.handleMessage)
	mux.HandleFunc("GET /__sw/events", c.handleEvents)
	mux.Handle("/", rp)
	return mux
}

// NewServer serves NewProxy on addr. Shutdown closes the event streams first,
// otherwise a connected client keeps it waiting until its deadline.
func NewServer(addr string, c *Controller, upstream *url.URL) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewProxy(c, upstream),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(c.closeSubscribers)
	return srv
}

func (c *Controller) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		jsonError(w, "invalid message body", http.StatusBadRequest)
		return
	}
	if err := c.HandleMessage(r.Context(), msg); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonOK(w, map[string]string{"state": c.State().String()})
}

func (c *Controller) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error("encode event", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
