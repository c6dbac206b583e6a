// Package routes defines HTTP route patterns for the application.
package routes

const (
	// Posts
	APIPosts    = "GET /api/posts"
	APIPost     = "GET /api/posts/{id}"
	APIPostDrop = "DELETE /api/posts/{id}"
	APITags     = "GET /api/tags"

	// Drafts
	APIDraftCreate = "POST /api/drafts"
	APIDraftEdit   = "POST /api/posts/{id}/edit"
	APIDraftGet    = "GET /api/drafts/{draft}"
	APIDraftPatch  = "PATCH /api/drafts/{draft}"
	APIDraftMedia  = "PUT /api/drafts/{draft}/media"
	APIDraftCommit = "POST /api/drafts/{draft}/commit"
	APIDraftReset  = "POST /api/drafts/{draft}/reset"
	APIDraftDelete = "DELETE /api/drafts/{draft}"

	// Media and live updates
	MediaPrefix = "/media/"
	Media       = "GET " + MediaPrefix + "{id}"
	SSEPath     = "GET /sse"

	Metrics = "GET /metrics"
)
