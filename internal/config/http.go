package config

const (
	HCType        = "Content-Type"
	HCacheControl = "Cache-Control"

	CTypeJSON        = "application/json"
	CTypeEventStream = "text/event-stream"
	CTypeOctetStream = "application/octet-stream"
)

const (
	HTTPErrNotFound       = "Not found"
	HTTPErrInvalidPostID  = "Invalid post id"
	HTTPErrInvalidDraftID = "Invalid draft id"
	HTTPErrInvalidBody    = "Invalid request body"
	HTTPErrUploadTooLarge = "Upload too large"
)
