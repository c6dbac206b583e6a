package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Media   MediaConfig   `yaml:"media"`
	Uploads UploadsConfig `yaml:"uploads"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"127.0.0.1"`
	Port string `yaml:"port" default:"12600"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type StorageConfig struct {
	Path string `yaml:"path" default:"./adventure.db"`
}

const (
	MediaBackendFS = "fs"
	MediaBackendS3 = "s3"
)

type MediaConfig struct {
	Backend string   `yaml:"backend" default:"fs"`
	Dir     string   `yaml:"dir" default:"./media"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket" default:""`
	Endpoint string `yaml:"endpoint" default:""`
	Region   string `yaml:"region" default:"auto"`
	Prefix   string `yaml:"prefix" default:"posts/"`

	// Credentials are read from the environment only.
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type UploadsConfig struct {
	MaxBytes int64 `yaml:"max_bytes" default:"104857600"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

var AppConfig *Config

// LoadConfig reads the yaml file at path over the defaults and stores the result in AppConfig.
// A missing file is not an error.
func LoadConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Media.Backend {
	case MediaBackendFS:
		if c.Media.Dir == "" {
			return fmt.Errorf("media.dir is required for the %q backend", MediaBackendFS)
		}
	case MediaBackendS3:
		if c.Media.S3.Bucket == "" {
			return fmt.Errorf("media.s3.bucket is required for the %q backend", MediaBackendS3)
		}
	default:
		return fmt.Errorf("unknown media backend %q", c.Media.Backend)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Media.S3.AccessKeyID = os.Getenv(EnvS3AccessKeyID)
	cfg.Media.S3.SecretAccessKey = os.Getenv(EnvS3SecretAccessKey)
}

func ApplyDefaults(config any) {
	applyDefaults(config)
}

func applyDefaults(config any) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
