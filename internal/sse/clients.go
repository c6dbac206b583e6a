// Package sse fans post changes out to browsers over Server-Sent Events.
package sse

import (
	"reflect"
	"sync"

	"github.com/debemdeboas/adventure/internal/model"
	"github.com/rs/zerolog"
)

var sseLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	sseLogger = l
}

// ListingID is the PostID of clients watching the post list rather than a single post.
const ListingID model.PostID = 0

const (
	EventReload  = "reload"
	EventDeleted = "deleted"
)

type Client struct {
	Msg    chan string
	PostID model.PostID
}

func NewClient(postID model.PostID) *Client {
	return &Client{
		Msg:    make(chan string, 4),
		PostID: postID,
	}
}

// Source pushes full post snapshots.
type Source interface {
	Subscribe(fn func([]model.Post)) (unsubscribe func())
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	lastMu      sync.Mutex
	last        map[model.PostID]model.Post
	unsubscribe func()
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client watching postID. Slow clients miss the message.
func (s *SSEClients) Broadcast(postID model.PostID, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.PostID == postID {
			select {
			case client.Msg <- msg:
			default:
				sseLogger.Debug().Int64("post_id", int64(postID)).Msg("Dropped event for slow client")
			}
		}
	}
}

// Follow subscribes to src and tells clients when the posts they watch change.
func (s *SSEClients) Follow(src Source) {
	s.unsubscribe = src.Subscribe(s.onSnapshot)
}

func (s *SSEClients) onSnapshot(posts []model.Post) {
	current := make(map[model.PostID]model.Post, len(posts))
	for _, p := range posts {
		current[p.ID] = p
	}

	s.lastMu.Lock()
	previous := s.last
	s.last = current
	s.lastMu.Unlock()

	// The first snapshot only establishes the baseline.
	if previous == nil {
		return
	}

	changed := false
	for id, p := range current {
		if old, ok := previous[id]; !ok || !reflect.DeepEqual(old, p) {
			changed = true
			s.Broadcast(id, EventReload)
		}
	}
	for id := range previous {
		if _, ok := current[id]; !ok {
			changed = true
			s.Broadcast(id, EventDeleted)
		}
	}

	if changed {
		sseLogger.Debug().Int("clients", s.Len()).Msg("Posts changed, notifying clients")
		s.Broadcast(ListingID, EventReload)
	}
}

// Close stops following the source and disconnects every client.
func (s *SSEClients) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.Msg)
	}
}
