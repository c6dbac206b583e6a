package config

// Log messages shared by the host binaries.
const (
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"
	ErrLoadConfigFmt         = "Failed to load config: %v"
	ErrCreateMediaStoreFmt   = "Failed to create media store: %v"
	ErrLoadPostsFmt          = "Failed to load posts: %v"
)
