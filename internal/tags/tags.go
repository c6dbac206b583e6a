// Package tags derives the set of distinct tags across posts and filters posts by tag.
package tags

import (
	"slices"
	"sync"

	"github.com/debemdeboas/adventure/internal/model"
	"github.com/samber/lo"
)

// Source is anything that pushes full post snapshots, like the post store.
type Source interface {
	Subscribe(fn func([]model.Post)) (unsubscribe func())
}

// Union returns every distinct tag across posts, sorted.
func Union(posts []model.Post) []string {
	all := lo.FlatMap(posts, func(p model.Post, _ int) []string {
		return p.Tags
	})
	out := lo.Uniq(all)
	slices.Sort(out)
	return out
}

// Filter returns the posts carrying tag, keeping their order. An empty tag returns posts unchanged.
func Filter(posts []model.Post, tag string) []model.Post {
	if tag == "" {
		return posts
	}
	return lo.Filter(posts, func(p model.Post, _ int) bool {
		return p.HasTag(tag)
	})
}

// Index keeps the tag union of a Source current.
type Index struct {
	mu   sync.RWMutex
	tags []string
	set  map[string]struct{}

	unsubscribe func()
	closeOnce   sync.Once
}

func NewIndex(source Source) *Index {
	idx := &Index{
		tags: []string{},
		set:  map[string]struct{}{},
	}
	idx.unsubscribe = source.Subscribe(idx.recompute)
	return idx
}

func (i *Index) recompute(posts []model.Post) {
	union := Union(posts)
	set := lo.SliceToMap(union, func(tag string) (string, struct{}) {
		return tag, struct{}{}
	})

	i.mu.Lock()
	defer i.mu.Unlock()
	i.tags = union
	i.set = set
}

// Available returns a copy of the current tag set, sorted.
func (i *Index) Available() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.tags)
}

func (i *Index) Has(tag string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.set[tag]
	return ok
}

// Close stops following the source. The last computed set stays readable.
func (i *Index) Close() {
	i.closeOnce.Do(func() {
		if i.unsubscribe != nil {
			i.unsubscribe()
		}
	})
}
