package sse

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/model"
)

// ServeHTTP streams events. ?post=<id> watches one post, no parameter watches the list.
func (s *SSEClients) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	postID := ListingID
	if raw := r.URL.Query().Get("post"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, config.HTTPErrInvalidPostID, http.StatusBadRequest)
			return
		}
		postID = model.PostID(id)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeEventStream)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := NewClient(postID)
	s.Add(client)
	defer s.Delete(client)

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	sseLogger.Debug().Int64("post_id", int64(postID)).Msg("SSE client connected")
	defer sseLogger.Debug().Int64("post_id", int64(postID)).Msg("SSE client disconnected")

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}
