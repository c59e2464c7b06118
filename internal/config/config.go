package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/wb-go/wbf/retry"
)

const (
	StorageLocal = "local"
	StorageMinIO = "minio"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	MinIO     MinIOConfig     `yaml:"minio"`
	DB        DBConfig        `yaml:"db"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retry     RetryConfig     `yaml:"retry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	StaticDir       string        `yaml:"static_dir" env:"SERVER_STATIC_DIR" env-default:"static"`
	TemplatesDir    string        `yaml:"templates_dir" env:"SERVER_TEMPLATES_DIR" env-default:"templates"`
}

type StorageConfig struct {
	Backend           string   `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	Root              string   `yaml:"root" env:"STORAGE_ROOT" env-default:"./uploads"`
	MaxFileSize       int64    `yaml:"max_file_size" env:"STORAGE_MAX_FILE_SIZE" env-default:"10485760"`
	AllowedExtensions []string `yaml:"allowed_extensions" env:"STORAGE_ALLOWED_EXTENSIONS" env-separator:"," env-default:".jpg,.jpeg,.png,.gif,.webp,.bmp,.tiff"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"images"`
	Region    string `yaml:"region" env:"MINIO_REGION" env-default:"us-east-1"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type DBConfig struct {
	Driver          string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	Name            string        `yaml:"name" env:"DB_NAME" env-default:"images"`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	SQLitePath      string        `yaml:"sqlite_path" env:"DB_SQLITE_PATH" env-default:"./data/images.db"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

type ThumbnailConfig struct {
	Width         int     `yaml:"width" env:"THUMBNAIL_WIDTH" env-default:"200"`
	Height        int     `yaml:"height" env:"THUMBNAIL_HEIGHT" env-default:"200"`
	CropToFit     bool    `yaml:"crop_to_fit" env:"THUMBNAIL_CROP_TO_FIT" env-default:"false"`
	WatermarkText string  `yaml:"watermark_text" env:"THUMBNAIL_WATERMARK_TEXT"`
	WatermarkSize float64 `yaml:"watermark_size" env:"THUMBNAIL_WATERMARK_SIZE" env-default:"12"`

	WatermarkPosition string `yaml:"watermark_position" env:"THUMBNAIL_WATERMARK_POSITION" env-default:"bottom-right"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"image-thumbnails"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"image-server-thumbnailer"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"4"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"200ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2"`
}

// MustLoad reads the file named by CONFIG_PATH, or the environment alone
// when the variable is unset.
func MustLoad() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.Getenv("CONFIG_PATH"))
}

func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.Storage.Backend {
	case StorageLocal, StorageMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DB.Driver))
	}

	if c.Storage.MaxFileSize <= 0 {
		errs = append(errs, errors.New("storage.max_file_size must be positive"))
	}
	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		errs = append(errs, errors.New("thumbnail dimensions must be positive"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("worker.concurrency must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) DBDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}
