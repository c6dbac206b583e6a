package editor

import (
	"sync"

	"github.com/debemdeboas/adventure/internal/media"
	"github.com/debemdeboas/adventure/internal/model"
)

type Repository interface {
	CreateSession() *Session
	EditSession(post model.Post) *Session
	GetSession(id DraftID) (*Session, bool)
	DeleteSession(id DraftID)
}

// MemoryRepository keeps live sessions in memory, keyed by draft id.
type MemoryRepository struct {
	store Store
	media media.Store

	sessions sync.Map
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository(store Store, mediaStore media.Store) *MemoryRepository {
	return &MemoryRepository{
		store: store,
		media: mediaStore,
	}
}

func (m *MemoryRepository) CreateSession() *Session {
	s := NewCreateSession(m.store, m.media)
	m.sessions.Store(s.ID(), s)
	editorLogger.Debug().Str("draft_id", string(s.ID())).Msg("Create session opened")
	return s
}

func (m *MemoryRepository) EditSession(post model.Post) *Session {
	s := NewEditSession(m.store, m.media, post)
	m.sessions.Store(s.ID(), s)
	editorLogger.Debug().Str("draft_id", string(s.ID())).Int64("post_id", int64(post.ID)).Msg("Edit session opened")
	return s
}

func (m *MemoryRepository) GetSession(id DraftID) (*Session, bool) {
	if s, ok := m.sessions.Load(id); ok {
		return s.(*Session), true
	}
	return nil, false
}

// DeleteSession closes and forgets the session. Unknown ids are ignored.
func (m *MemoryRepository) DeleteSession(id DraftID) {
	if s, ok := m.sessions.LoadAndDelete(id); ok {
		s.(*Session).Close()
	}
}

func (m *MemoryRepository) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close closes every live session.
func (m *MemoryRepository) Close() {
	m.sessions.Range(func(key, _ any) bool {
		m.DeleteSession(key.(DraftID))
		return true
	})
}
