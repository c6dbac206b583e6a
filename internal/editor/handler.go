package editor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/debemdeboas/adventure/internal/cache"
	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/model"
	"github.com/debemdeboas/adventure/internal/routes"
	"github.com/debemdeboas/adventure/internal/util"
	"github.com/google/uuid"
)

type PostReader interface {
	GetByID(id model.PostID) (*model.Post, bool)
}

// Handler serves the draft lifecycle over HTTP.
type Handler struct {
	repo      Repository
	posts     PostReader
	maxUpload int64

	// Spooled upload file per draft, removed once it is replaced, committed or discarded.
	uploads *cache.Cache[DraftID, string]
}

func NewHandler(repo Repository, posts PostReader, maxUpload int64) *Handler {
	return &Handler{
		repo:      repo,
		posts:     posts,
		maxUpload: maxUpload,
		uploads:   cache.NewCache[DraftID, string](),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.APIDraftCreate, h.ServeCreate)
	mux.HandleFunc(routes.APIDraftEdit, h.ServeEdit)
	mux.HandleFunc(routes.APIDraftGet, h.ServeGet)
	mux.HandleFunc(routes.APIDraftPatch, h.ServePatch)
	mux.HandleFunc(routes.APIDraftMedia, h.ServeMedia)
	mux.HandleFunc(routes.APIDraftCommit, h.ServeCommit)
	mux.HandleFunc(routes.APIDraftReset, h.ServeReset)
	mux.HandleFunc(routes.APIDraftDelete, h.ServeDelete)
}

type draftView struct {
	ID          DraftID       `json:"id"`
	State       string        `json:"state"`
	PostID      *model.PostID `json:"post_id,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Latitude    string        `json:"latitude"`
	Longitude   string        `json:"longitude"`
	Tags        []string      `json:"tags"`
	Directions  string        `json:"directions"`
	MediaRef    string        `json:"media_ref,omitempty"`
	NewMedia    bool          `json:"new_media"`
	Message     string        `json:"message,omitempty"`
}

func viewOf(s *Session) draftView {
	d := s.Draft()
	v := draftView{
		ID:          s.ID(),
		State:       s.State().String(),
		Title:       d.Title,
		Description: d.Description,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		Tags:        d.Tags,
		Directions:  d.Directions,
		NewMedia:    d.MediaSource != "",
		Message:     s.LastResult().Message,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if original := s.Original(); original != nil {
		v.PostID = &original.ID
		v.MediaRef = original.MediaRef
	}
	return v
}

type draftPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Latitude    *string   `json:"latitude"`
	Longitude   *string   `json:"longitude"`
	Tags        *[]string `json:"tags"`
	TagsText    *string   `json:"tags_text"`
	Directions  *string   `json:"directions"`
}

func (p draftPatch) apply(s *Session) error {
	steps := []struct {
		value *string
		set   func(string) error
	}{
		{p.Title, s.SetTitle},
		{p.Description, s.SetDescription},
		{p.Latitude, s.SetLatitude},
		{p.Longitude, s.SetLongitude},
		{p.TagsText, s.SetTagsText},
		{p.Directions, s.SetDirections},
	}
	for _, step := range steps {
		if step.value == nil {
			continue
		}
		if err := step.set(*step.value); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		return s.SetTags(*p.Tags)
	}
	return nil
}

type commitView struct {
	State   string       `json:"state"`
	PostID  model.PostID `json:"post_id,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	s := h.repo.CreateSession()
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, config.HTTPErrInvalidPostID, http.StatusBadRequest)
		return
	}
	post, ok := h.posts.GetByID(model.PostID(id))
	if !ok {
		http.Error(w, config.HTTPErrNotFound, http.StatusNotFound)
		return
	}

	s := h.repo.EditSession(*post)
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) ServePatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var patch draftPatch
	if err := util.DecodeJSON(r, &patch); err != nil {
		http.Error(w, config.HTTPErrInvalidBody, http.StatusBadRequest)
		return
	}
	if err := patch.apply(s); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

// ServeMedia spools the raw request body to a temp file and selects it as the draft's media.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.State() != StateEditing {
		writeSessionError(w, ErrNotEditing)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	tmp, err := os.CreateTemp("", config.UploadTempPattern)
	if err != nil {
		editorLogger.Error().Err(err).Msg("Failed to create upload file")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	n, err := io.Copy(tmp, r.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil || n == 0 {
		os.Remove(tmp.Name())
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			http.Error(w, config.HTTPErrUploadTooLarge, http.StatusRequestEntityTooLarge)
		case err == nil:
			http.Error(w, "Empty upload", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	if err := s.SetMediaSource(tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		writeSessionError(w, err)
		return
	}
	h.replaceUpload(s.ID(), tmp.Name())

	editorLogger.Debug().Str("draft_id", string(s.ID())).Int64("bytes", n).Msg("Media uploaded to draft")
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) ServeCommit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	// A client hanging up mid-commit must not abort the media copy or the store write.
	res, err := s.Commit(context.WithoutCancel(r.Context()))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	status := http.StatusOK
	if res.State == StateFailed {
		status = http.StatusUnprocessableEntity
	} else {
		h.dropUpload(s.ID())
	}
	writeJSON(w, status, commitView{
		State:   res.State.String(),
		PostID:  res.PostID,
		Message: res.Message,
	})
}

func (h *Handler) ServeReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Reset(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.repo.DeleteSession(s.ID())
	h.dropUpload(s.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	raw := r.PathValue("draft")
	if _, err := uuid.Parse(raw); err != nil {
		http.Error(w, config.HTTPErrInvalidDraftID, http.StatusBadRequest)
		return nil, false
	}
	s, ok := h.repo.GetSession(DraftID(raw))
	if !ok {
		http.Error(w, config.HTTPErrNotFound, http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) replaceUpload(id DraftID, path string) {
	h.dropUpload(id)
	h.uploads.Set(id, path)
}

func (h *Handler) dropUpload(id DraftID) {
	if path, ok := h.uploads.Get(id); ok {
		os.Remove(path)
		h.uploads.Delete(id)
	}
}

// Close removes every spooled upload.
func (h *Handler) Close() {
	editorLogger.Debug().Int("uploads", h.uploads.Len()).Msg("Removing spooled uploads")
	for _, path := range h.uploads.Values() {
		os.Remove(path)
	}
	h.uploads.Clear()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if err := util.WriteJSON(w, status, v); err != nil {
		editorLogger.Error().Err(err).Int("status", status).Msg("Failed to write JSON response")
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotEditing), errors.Is(err, ErrCommitting), errors.Is(err, ErrClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
