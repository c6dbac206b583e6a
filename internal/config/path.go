package config

const (
	DefaultConfigPath = "config.yaml"
	DefaultEnvFile    = ".env"

	EnvS3AccessKeyID     = "S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "S3_SECRET_ACCESS_KEY"

	// Uploads are spooled here before the media store takes them.
	UploadTempPattern = "adventure-upload-*"
)
