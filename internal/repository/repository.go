// Package repository is the durable post store and its push-based snapshot.
package repository

import (
	"context"

	"github.com/debemdeboas/adventure/internal/model"
	"github.com/rs/zerolog"
)

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

type PostRepository interface {
	Init(ctx context.Context) error

	// Insert ignores post.ID and returns the id assigned by the store.
	Insert(ctx context.Context, post model.Post) (model.PostID, error)
	Update(ctx context.Context, post model.Post) error
	Delete(ctx context.Context, post model.Post) error
	DeleteByID(ctx context.Context, id model.PostID) error

	GetByID(id model.PostID) (*model.Post, bool)
	GetAll() []model.Post
	GetByTag(tag string) []model.Post

	// Subscribe calls fn with the current snapshot and again after every write.
	Subscribe(fn func([]model.Post)) (unsubscribe func())
	// SubscribePost is Subscribe for a single post. fn receives nil while the post does not exist.
	SubscribePost(id model.PostID, fn func(*model.Post)) (unsubscribe func())

	Close() error
}
