// Package editor holds in-progress post drafts and commits them to the post store.
package editor

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/debemdeboas/adventure/internal/media"
	"github.com/debemdeboas/adventure/internal/metrics"
	"github.com/debemdeboas/adventure/internal/model"
	"github.com/debemdeboas/adventure/internal/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var editorLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

type State int

const (
	StateEditing State = iota
	StateCommitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateCommitting:
		return "committing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrNotEditing = errors.New("session is not editing")
	ErrClosed     = errors.New("session is closed")
	ErrCommitting = errors.New("commit in progress")

	errEmptyMediaRef = errors.New("media store returned an empty reference")
)

const (
	MsgNoMedia      = "no media selected"
	MsgMediaFailed  = "media save failed"
	MsgUnknownError = "unknown error"
)

// Store is the part of the post store a session writes through.
type Store interface {
	Insert(ctx context.Context, post model.Post) (model.PostID, error)
	Update(ctx context.Context, post model.Post) error
	GetByID(id model.PostID) (*model.Post, bool)
}

type DraftID string

// Draft is the raw form state. Coordinates stay text until commit.
type Draft struct {
	Title       string
	Description string
	Latitude    string
	Longitude   string
	Tags        []string
	Directions  string

	// Local path of newly selected media. Empty keeps the original media on edit.
	MediaSource string
}

func (d Draft) clone() Draft {
	d.Tags = slices.Clone(d.Tags)
	return d
}

// Result is the business outcome of a commit.
type Result struct {
	State   State
	PostID  model.PostID
	Message string
	Err     error
}

type Session struct {
	id    DraftID
	store Store
	media media.Store

	mu       sync.Mutex
	original *model.Post
	draft    Draft
	state    State
	result   Result
	closed   bool
}

func NewCreateSession(store Store, mediaStore media.Store) *Session {
	return &Session{
		id:    DraftID(uuid.New().String()),
		store: store,
		media: mediaStore,
		draft: Draft{Tags: []string{}},
		state: StateEditing,
	}
}

// NewEditSession starts a draft pre-filled from post.
func NewEditSession(store Store, mediaStore media.Store, post model.Post) *Session {
	original := post.Clone()
	s := NewCreateSession(store, mediaStore)
	s.original = &original
	s.draft = draftFrom(original)
	return s
}

func draftFrom(p model.Post) Draft {
	tags := slices.Clone(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Draft{
		Title:       p.Title,
		Description: p.GetDescription(),
		Latitude:    formatCoordinate(p.Latitude),
		Longitude:   formatCoordinate(p.Longitude),
		Tags:        tags,
		Directions:  p.GetDirections(),
	}
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (s *Session) ID() DraftID {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

// Original returns the post being edited, or nil for a session that has not created one yet.
func (s *Session) Original() *model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.original == nil {
		return nil
	}
	c := s.original.Clone()
	return &c
}

func (s *Session) IsEdit() bool {
	return s.Original() != nil
}

// LastResult is the outcome of the latest finished commit.
func (s *Session) LastResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) edit(fn func(d *Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != StateEditing {
		return ErrNotEditing
	}
	fn(&s.draft)
	return nil
}

func (s *Session) SetTitle(title string) error {
	return s.edit(func(d *Draft) { d.Title = title })
}

func (s *Session) SetDescription(description string) error {
	return s.edit(func(d *Draft) { d.Description = description })
}

func (s *Session) SetLatitude(text string) error {
	return s.edit(func(d *Draft) { d.Latitude = text })
}

func (s *Session) SetLongitude(text string) error {
	return s.edit(func(d *Draft) { d.Longitude = text })
}

func (s *Session) SetTags(tags []string) error {
	tags = slices.Clone(tags)
	if tags == nil {
		tags = []string{}
	}
	return s.edit(func(d *Draft) { d.Tags = tags })
}

// SetTagsText replaces the tags with the comma separated entries of text.
func (s *Session) SetTagsText(text string) error {
	return s.SetTags(model.ParseTags(text))
}

func (s *Session) SetDirections(directions string) error {
	return s.edit(func(d *Draft) { d.Directions = directions })
}

func (s *Session) SetMediaSource(source string) error {
	return s.edit(func(d *Draft) { d.MediaSource = source })
}

// Commit materializes any new media and writes the draft to the store.
// The returned error is only for misuse; the outcome of the write is in Result.
func (s *Session) Commit(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	if s.state != StateEditing {
		s.mu.Unlock()
		return Result{}, ErrNotEditing
	}
	s.state = StateCommitting
	draft := s.draft.clone()
	var original *model.Post
	if s.original != nil {
		c := s.original.Clone()
		original = &c
	}
	s.mu.Unlock()

	kind := metrics.KindCreate
	if original != nil {
		kind = metrics.KindEdit
	}

	res, stored := s.run(ctx, draft, original)
	metrics.ObserveCommit(kind, res.State == StateSuccess)

	log := editorLogger.Info()
	if res.State == StateFailed {
		log = editorLogger.Warn().Err(res.Err)
	}
	log.Str("draft_id", string(s.id)).Str("kind", kind).Str("state", res.State.String()).
		Int64("post_id", int64(res.PostID)).Msg("Draft committed")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return res, nil
	}
	s.state = res.State
	s.result = res
	if res.State == StateSuccess {
		// The created post becomes the original, so the next commit is an update.
		s.original = stored
		s.draft.MediaSource = ""
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, draft Draft, original *model.Post) (Result, *model.Post) {
	mediaRef := ""
	if original != nil {
		mediaRef = original.MediaRef
	}

	switch {
	case draft.MediaSource != "":
		ref, err := s.media.Materialize(ctx, draft.MediaSource)
		if err == nil && ref == "" {
			err = errEmptyMediaRef
		}
		if err != nil {
			return failed(MsgMediaFailed, err), nil
		}
		mediaRef = ref
	case original == nil:
		return failed(MsgNoMedia, nil), nil
	}

	post := model.Post{
		Title:       draft.Title,
		Description: util.OptionalString(draft.Description),
		MediaRef:    mediaRef,
		Latitude:    util.ParseOptionalFloat(draft.Latitude),
		Longitude:   util.ParseOptionalFloat(draft.Longitude),
		Tags:        slices.Clone(draft.Tags),
		Directions:  util.OptionalString(draft.Directions),
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if original != nil {
		post.ID = original.ID
		post.Timestamp = original.Timestamp
		if err := s.store.Update(ctx, post); err != nil {
			return failed(messageFor(err), err), nil
		}
		return Result{State: StateSuccess, PostID: post.ID}, s.storedOr(post)
	}

	id, err := s.store.Insert(ctx, post)
	if err != nil {
		return failed(messageFor(err), err), nil
	}
	post.ID = id
	return Result{State: StateSuccess, PostID: id}, s.storedOr(post)
}

// storedOr prefers the store's copy, which carries the assigned timestamp.
func (s *Session) storedOr(post model.Post) *model.Post {
	if stored, ok := s.store.GetByID(post.ID); ok {
		return stored
	}
	return &post
}

func failed(msg string, err error) Result {
	return Result{State: StateFailed, Message: msg, Err: err}
}

func messageFor(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgUnknownError
}

// CommitAsync runs Commit on a new goroutine and hands the outcome to done through dispatch.
// A nil dispatch calls done on the worker goroutine. Outcomes for closed sessions are dropped.
func (s *Session) CommitAsync(ctx context.Context, dispatch func(func()), done func(Result, error)) {
	go func() {
		res, err := s.Commit(ctx)

		deliver := func() {
			if s.Closed() {
				editorLogger.Debug().Str("draft_id", string(s.id)).Msg("Dropping commit result for closed session")
				return
			}
			if done != nil {
				done(res, err)
			}
		}

		if dispatch == nil {
			deliver()
			return
		}
		dispatch(deliver)
	}()
}

// Reset returns a finished session to editing with its draft intact.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.state == StateCommitting:
		return ErrCommitting
	}
	s.state = StateEditing
	s.result = Result{}
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
