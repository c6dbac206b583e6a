package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/debemdeboas/adventure/internal/cache"
	"github.com/debemdeboas/adventure/internal/db"
	"github.com/debemdeboas/adventure/internal/metrics"
	"github.com/debemdeboas/adventure/internal/model"
	"github.com/debemdeboas/adventure/internal/tags"
)

const (
	selectPostsQuery = `SELECT id, title, description, media_ref, latitude, longitude, tags, directions, timestamp FROM posts`
	selectPostQuery  = selectPostsQuery + ` WHERE id = ?`

	insertPostQuery = `INSERT INTO posts (title, description, media_ref, latitude, longitude, tags, directions, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// timestamp is fixed at creation and never rewritten.
	updatePostQuery = `UPDATE posts SET title = ?, description = ?, media_ref = ?, latitude = ?, longitude = ?, tags = ?, directions = ?
WHERE id = ?`

	deletePostQuery = `DELETE FROM posts WHERE id = ?`
)

const (
	opInit   = "init"
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
)

type postRow struct {
	ID          int64
	Title       string
	Description sql.NullString
	MediaRef    string
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
	Tags        string
	Directions  sql.NullString
	Timestamp   int64
}

func (r *postRow) scan(rows *sql.Rows) error {
	return rows.Scan(&r.ID, &r.Title, &r.Description, &r.MediaRef, &r.Latitude, &r.Longitude, &r.Tags, &r.Directions, &r.Timestamp)
}

func (r postRow) toDomain() (model.Post, error) {
	tags, err := decodeTags(r.Tags)
	if err != nil {
		return model.Post{}, fmt.Errorf("post %d: %w", r.ID, err)
	}

	p := model.Post{
		ID:        model.PostID(r.ID),
		Title:     r.Title,
		MediaRef:  r.MediaRef,
		Tags:      tags,
		Timestamp: r.Timestamp,
	}
	if r.Description.Valid {
		p.Description = &r.Description.String
	}
	if r.Directions.Valid {
		p.Directions = &r.Directions.String
	}
	if r.Latitude.Valid {
		p.Latitude = &r.Latitude.Float64
	}
	if r.Longitude.Valid {
		p.Longitude = &r.Longitude.Float64
	}
	return p, nil
}

func encodeTags(t []string) (string, error) {
	if t == nil {
		t = []string{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(s string) ([]string, error) {
	t := []string{}
	if s == "" {
		return t, nil
	}
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return t, nil
}

type listSubscriber struct {
	id int
	fn func([]model.Post)
}

type postSubscriber struct {
	id   int
	post model.PostID
	fn   func(*model.Post)
}

type Option func(*DBPostRepository)

// WithClock replaces the clock used to stamp new posts.
func WithClock(now func() time.Time) Option {
	return func(r *DBPostRepository) {
		r.now = func() int64 { return now().UnixMilli() }
	}
}

type DBPostRepository struct {
	db  db.Db
	now func() int64

	// Serializes writes. Never held while listeners run.
	writeMu sync.Mutex

	// Guards sorted and keeps it consistent with byID.
	mu     sync.RWMutex
	sorted []model.Post
	byID   *cache.Cache[model.PostID, *model.Post]

	subMu    sync.Mutex
	nextSub  int
	listSubs []listSubscriber
	postSubs []postSubscriber
}

var _ PostRepository = (*DBPostRepository)(nil)

// NewDBPostRepository wraps an initialized database. Call Init before reading.
func NewDBPostRepository(database db.Db, opts ...Option) *DBPostRepository {
	r := &DBPostRepository{
		db:     database,
		now:    model.NowMillis,
		sorted: []model.Post{},
		byID:   cache.NewCache[model.PostID, *model.Post](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DBPostRepository) Init(ctx context.Context) error {
	r.writeMu.Lock()
	posts, err := r.loadAll(ctx)
	if err != nil {
		r.writeMu.Unlock()
		return storageErr(opInit, err)
	}
	r.replaceSnapshot(posts)
	r.writeMu.Unlock()

	repoLogger.Info().Int("posts", len(posts)).Msg("Post store loaded")
	r.notify(nil)
	return nil
}

func (r *DBPostRepository) loadAll(ctx context.Context) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx, selectPostsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var row postRow
		if err := row.scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

func (r *DBPostRepository) fetch(ctx context.Context, id model.PostID) (*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, selectPostQuery, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query post: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query post: %w", err)
		}
		return nil, nil
	}
	var row postRow
	if err := row.scan(rows); err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *DBPostRepository) Insert(ctx context.Context, post model.Post) (model.PostID, error) {
	r.writeMu.Lock()
	id, err := r.insertLocked(ctx, post)
	r.writeMu.Unlock()

	metrics.ObserveMutation(opInsert, err)
	if err != nil {
		repoLogger.Error().Err(err).Str("title", post.Title).Msg("Insert failed")
		return 0, err
	}

	repoLogger.Debug().Int64("post_id", int64(id)).Msg("Post inserted")
	r.notify(&id)
	return id, nil
}

func (r *DBPostRepository) insertLocked(ctx context.Context, post model.Post) (model.PostID, error) {
	stored := post.Clone()
	if stored.Timestamp == 0 {
		stored.Timestamp = r.now()
	}
	if stored.Tags == nil {
		stored.Tags = []string{}
	}

	encoded, err := encodeTags(stored.Tags)
	if err != nil {
		return 0, storageErr(opInsert, err)
	}

	res, err := r.db.ExecContext(ctx, insertPostQuery,
		stored.Title, stored.Description, stored.MediaRef, stored.Latitude, stored.Longitude,
		encoded, stored.Directions, stored.Timestamp,
	)
	if err != nil {
		return 0, storageErr(opInsert, err)
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr(opInsert, err)
	}

	stored.ID = model.PostID(lastID)
	r.putSnapshot(stored)
	return stored.ID, nil
}

// Update replaces every field of the stored post except Timestamp.
func (r *DBPostRepository) Update(ctx context.Context, post model.Post) error {
	r.writeMu.Lock()
	err := r.updateLocked(ctx, post)
	r.writeMu.Unlock()

	metrics.ObserveMutation(opUpdate, err)
	if err != nil {
		repoLogger.Error().Err(err).Int64("post_id", int64(post.ID)).Msg("Update failed")
		return err
	}

	repoLogger.Debug().Int64("post_id", int64(post.ID)).Msg("Post updated")
	r.notify(&post.ID)
	return nil
}

func (r *DBPostRepository) updateLocked(ctx context.Context, post model.Post) error {
	stored := post.Clone()
	if stored.Tags == nil {
		stored.Tags = []string{}
	}

	encoded, err := encodeTags(stored.Tags)
	if err != nil {
		return storageErr(opUpdate, err)
	}

	res, err := r.db.ExecContext(ctx, updatePostQuery,
		stored.Title, stored.Description, stored.MediaRef, stored.Latitude, stored.Longitude,
		encoded, stored.Directions, int64(stored.ID),
	)
	if err != nil {
		return storageErr(opUpdate, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr(opUpdate, err)
	}
	if affected == 0 {
		return fmt.Errorf("update post %d: %w", stored.ID, ErrNotFound)
	}

	if current, ok := r.byID.Get(stored.ID); ok {
		stored.Timestamp = current.Timestamp
	} else {
		// Written by someone else since Init; take the row as stored.
		fresh, err := r.fetch(ctx, stored.ID)
		if err != nil {
			return storageErr(opUpdate, err)
		}
		if fresh == nil {
			return fmt.Errorf("update post %d: %w", stored.ID, ErrNotFound)
		}
		stored.Timestamp = fresh.Timestamp
	}

	r.putSnapshot(stored)
	return nil
}

func (r *DBPostRepository) Delete(ctx context.Context, post model.Post) error {
	return r.DeleteByID(ctx, post.ID)
}

// DeleteByID removes the post. Deleting an absent id succeeds and notifies nobody.
func (r *DBPostRepository) DeleteByID(ctx context.Context, id model.PostID) error {
	r.writeMu.Lock()
	removed, err := r.deleteLocked(ctx, id)
	r.writeMu.Unlock()

	metrics.ObserveMutation(opDelete, err)
	if err != nil {
		repoLogger.Error().Err(err).Int64("post_id", int64(id)).Msg("Delete failed")
		return err
	}
	if !removed {
		repoLogger.Debug().Int64("post_id", int64(id)).Msg("Delete of absent post ignored")
		return nil
	}

	repoLogger.Debug().Int64("post_id", int64(id)).Msg("Post deleted")
	r.notify(&id)
	return nil
}

func (r *DBPostRepository) deleteLocked(ctx context.Context, id model.PostID) (bool, error) {
	res, err := r.db.ExecContext(ctx, deletePostQuery, int64(id))
	if err != nil {
		return false, storageErr(opDelete, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(opDelete, err)
	}

	_, cached := r.byID.Get(id)
	if affected == 0 && !cached {
		return false, nil
	}
	r.removeSnapshot(id)
	return true, nil
}

func comparePosts(a, b model.Post) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

func (r *DBPostRepository) replaceSnapshot(posts []model.Post) {
	slices.SortFunc(posts, comparePosts)
	byID := make(map[model.PostID]*model.Post, len(posts))
	for i := range posts {
		p := posts[i].Clone()
		byID[p.ID] = &p
	}

	r.mu.Lock()
	r.sorted = posts
	r.byID.SetTo(byID)
	r.mu.Unlock()

	metrics.SetPostCount(len(posts))
}

func (r *DBPostRepository) putSnapshot(post model.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := slices.DeleteFunc(r.sorted, func(p model.Post) bool { return p.ID == post.ID })
	sorted = append(sorted, post)
	slices.SortFunc(sorted, comparePosts)
	r.sorted = sorted

	cached := post.Clone()
	r.byID.Set(post.ID, &cached)
	metrics.SetPostCount(len(sorted))
}

func (r *DBPostRepository) removeSnapshot(id model.PostID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sorted = slices.DeleteFunc(r.sorted, func(p model.Post) bool { return p.ID == id })
	r.byID.Delete(id)
	metrics.SetPostCount(len(r.sorted))
}

func (r *DBPostRepository) GetByID(id model.PostID) (*model.Post, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID.Get(id)
	if !ok {
		return nil, false
	}
	c := p.Clone()
	return &c, true
}

// GetAll returns a deep copy of every post, newest first. Equal timestamps put the higher id first.
func (r *DBPostRepository) GetAll() []model.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.sorted)
}

func (r *DBPostRepository) GetByTag(tag string) []model.Post {
	return tags.Filter(r.GetAll(), tag)
}

func cloneAll(posts []model.Post) []model.Post {
	out := make([]model.Post, len(posts))
	for i := range posts {
		out[i] = posts[i].Clone()
	}
	return out
}

func (r *DBPostRepository) Subscribe(fn func([]model.Post)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listSubs = append(r.listSubs, listSubscriber{id: id, fn: fn})
	r.subMu.Unlock()

	r.callList(fn, r.GetAll())

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		r.listSubs = slices.DeleteFunc(r.listSubs, func(s listSubscriber) bool { return s.id == id })
	}
}

func (r *DBPostRepository) SubscribePost(postID model.PostID, fn func(*model.Post)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.postSubs = append(r.postSubs, postSubscriber{id: id, post: postID, fn: fn})
	r.subMu.Unlock()

	current, _ := r.GetByID(postID)
	r.callPost(fn, current)

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		r.postSubs = slices.DeleteFunc(r.postSubs, func(s postSubscriber) bool { return s.id == id })
	}
}

// notify runs listeners in subscription order. A nil changed id means every post listener runs.
func (r *DBPostRepository) notify(changed *model.PostID) {
	r.subMu.Lock()
	lists := slices.Clone(r.listSubs)
	posts := slices.Clone(r.postSubs)
	r.subMu.Unlock()

	if len(lists) > 0 {
		snapshot := r.GetAll()
		for i, s := range lists {
			if i == len(lists)-1 {
				r.callList(s.fn, snapshot)
				continue
			}
			r.callList(s.fn, cloneAll(snapshot))
		}
	}

	for _, s := range posts {
		if changed != nil && s.post != *changed {
			continue
		}
		current, _ := r.GetByID(s.post)
		r.callPost(s.fn, current)
	}
}

func (r *DBPostRepository) callList(fn func([]model.Post), posts []model.Post) {
	defer recoverListener("list")
	fn(posts)
}

func (r *DBPostRepository) callPost(fn func(*model.Post), post *model.Post) {
	defer recoverListener("post")
	fn(post)
}

func recoverListener(kind string) {
	if rec := recover(); rec != nil {
		repoLogger.Error().Interface("panic", rec).Str("listener", kind).Msg("Subscriber panicked")
	}
}

// Close drops every subscriber. The database is owned by the caller.
func (r *DBPostRepository) Close() error {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.listSubs = nil
	r.postSubs = nil
	return nil
}
