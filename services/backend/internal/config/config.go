package config

import (
	"fmt"
	"os"
	"time"

	pkgcfg "github.com/Skotchmaster/storefront/pkg/config"
)

type Config struct {
	ServiceName string
	Port        string
	LogLevel    string

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret []byte
	AccessTTL time.Duration

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	StorageDisk      string
	StorageLocalRoot string
	StorageURL       string
	S3Bucket         string
	S3Region         string
	S3Key            string
	S3Secret         string
	S3Endpoint       string
}

func Load() (*Config, error) {
	port := pkgcfg.EnvDefault("SERVER_PORT", "8080")
	cfg := &Config{
		ServiceName: pkgcfg.EnvDefault("SERVICE_NAME", "storefront-backend"),
		Port:        port,
		LogLevel:    os.Getenv("LOG_LEVEL"),

		DatabaseDriver: pkgcfg.EnvDefault("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		AccessTTL: pkgcfg.EnvDurationDefault("ACCESS_TOKEN_TTL", 24*time.Hour),

		KafkaBrokers: pkgcfg.CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    pkgcfg.EnvDefault("ES_INDEX", "products"),

		StorageDisk:      pkgcfg.EnvDefault("STORAGE_DISK", "local"),
		StorageLocalRoot: pkgcfg.EnvDefault("STORAGE_LOCAL_ROOT", "storage"),
		StorageURL:       pkgcfg.EnvDefault("STORAGE_URL", "http://localhost:"+port+"/assets"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Region:         pkgcfg.EnvDefault("S3_REGION", "us-east-1"),
		S3Key:            os.Getenv("S3_ACCESS_KEY"),
		S3Secret:         os.Getenv("S3_SECRET_KEY"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
	}

	if err := pkgcfg.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL"); err != nil {
		return nil, err
	}
	if err := pkgcfg.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.StorageDisk == "s3" {
		if err := pkgcfg.MustNonEmpty(cfg.S3Bucket, "S3_BUCKET"); err != nil {
			return nil, err
		}
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	return cfg, nil
}
