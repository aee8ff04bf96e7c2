package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// setupSSEConnection sets up SSE headers. On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// streamMapEvents writes the current map state, then every broadcast event,
// until the client disconnects or the stream shuts down.
func streamMapEvents(w http.ResponseWriter, r *http.Request, stream *MapStream) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := stream.AddListener()
	defer stream.RemoveListener(eventCh)

	markers, camera := stream.State()
	sendSSEEvent(w, flusher, "markers", markers)
	if camera != nil {
		sendSSEEvent(w, flusher, "center", camera)
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event.Data)
		}
	}
}
