// Package api serves posts, tags and media as JSON over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/media"
	"github.com/debemdeboas/adventure/internal/model"
	"github.com/debemdeboas/adventure/internal/render"
	"github.com/debemdeboas/adventure/internal/repository"
	"github.com/debemdeboas/adventure/internal/routes"
	"github.com/debemdeboas/adventure/internal/util"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var apiLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	apiLogger = l
}

type PostStore interface {
	GetAll() []model.Post
	GetByID(id model.PostID) (*model.Post, bool)
	GetByTag(tag string) []model.Post
	DeleteByID(ctx context.Context, id model.PostID) error
}

type TagSource interface {
	Available() []string
}

type Handler struct {
	posts PostStore
	tags  TagSource
	media media.Resolver
}

func NewHandler(posts PostStore, tags TagSource, resolver media.Resolver) *Handler {
	return &Handler{
		posts: posts,
		tags:  tags,
		media: resolver,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.APIPosts, h.ServePosts)
	mux.HandleFunc(routes.APIPost, h.ServePost)
	mux.HandleFunc(routes.APIPostDrop, h.ServeDelete)
	mux.HandleFunc(routes.APITags, h.ServeTags)
	mux.HandleFunc(routes.Media, h.ServeMedia)
}

type postView struct {
	ID              model.PostID `json:"id"`
	Title           string       `json:"title"`
	Description     *string      `json:"description"`
	DescriptionHTML string       `json:"description_html,omitempty"`
	MediaURL        string       `json:"media_url,omitempty"`
	Latitude        *float64     `json:"latitude"`
	Longitude       *float64     `json:"longitude"`
	Tags            []string     `json:"tags"`
	Directions      *string      `json:"directions"`
	Timestamp       int64        `json:"timestamp"`
	CreatedAt       string       `json:"created_at"`
}

func viewOf(p model.Post) postView {
	v := postView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Tags:        p.Tags,
		Directions:  p.Directions,
		Timestamp:   p.Timestamp,
		CreatedAt:   p.CreatedAt().Format(time.RFC3339),
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if p.HasMedia() {
		v.MediaURL = routes.MediaPrefix + strconv.FormatInt(int64(p.ID), 10)
	}
	return v
}

// ServePosts lists posts newest first, optionally narrowed to ?tag=.
func (h *Handler) ServePosts(w http.ResponseWriter, r *http.Request) {
	var posts []model.Post
	if tag := r.URL.Query().Get("tag"); tag != "" {
		posts = h.posts.GetByTag(tag)
	} else {
		posts = h.posts.GetAll()
	}

	views := lo.Map(posts, func(p model.Post, _ int) postView {
		return viewOf(p)
	})
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) ServePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.post(w, r)
	if !ok {
		return
	}
	v := viewOf(*post)
	v.DescriptionHTML = render.Description(post)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	if err := h.posts.DeleteByID(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ServeTags(w http.ResponseWriter, r *http.Request) {
	tags := h.tags.Available()
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, tags)
}

// ServeMedia streams the bytes behind a post's media reference.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	post, ok := h.post(w, r)
	if !ok {
		return
	}

	body, ctype, err := h.media.Open(r.Context(), post.MediaRef)
	switch {
	case errors.Is(err, media.ErrNoMedia), errors.Is(err, media.ErrUnknownRef), errors.Is(err, fs.ErrNotExist):
		http.Error(w, config.HTTPErrNotFound, http.StatusNotFound)
		return
	case err != nil:
		apiLogger.Error().Err(err).Int64("post_id", int64(post.ID)).Msg("Failed to open media")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set(config.HCType, ctype)
	w.Header().Set(config.HCacheControl, "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		apiLogger.Debug().Err(err).Int64("post_id", int64(post.ID)).Msg("Media copy interrupted")
	}
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) (*model.Post, bool) {
	id, ok := postID(w, r)
	if !ok {
		return nil, false
	}
	post, found := h.posts.GetByID(id)
	if !found {
		http.Error(w, config.HTTPErrNotFound, http.StatusNotFound)
		return nil, false
	}
	return post, true
}

func postID(w http.ResponseWriter, r *http.Request) (model.PostID, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, config.HTTPErrInvalidPostID, http.StatusBadRequest)
		return 0, false
	}
	return model.PostID(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if err := util.WriteJSON(w, status, v); err != nil {
		apiLogger.Error().Err(err).Int("status", status).Msg("Failed to write JSON response")
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	var storageErr *repository.StorageError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, config.HTTPErrNotFound, http.StatusNotFound)
	case errors.As(err, &storageErr):
		apiLogger.Error().Err(err).Str("op", storageErr.Op).Msg("Storage failure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
