package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"resource_hub"`
	// SQLitePath wird nur bei DB_DRIVER=sqlite verwendet.
	SQLitePath string `envconfig:"SQLITE_PATH" default:"resource_hub.db"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	SearchTimeout  time.Duration `envconfig:"SEARCH_TIMEOUT" default:"12s"`
	SearchMaxLimit int           `envconfig:"SEARCH_MAX_LIMIT" default:"100"`
	UploadMaxBytes int64         `envconfig:"UPLOAD_MAX_BYTES" default:"209715200"`

	// Leerer Schedule deaktiviert den Abgleich-Job.
	ReconcileSchedule  string `envconfig:"RECONCILE_SCHEDULE" default:"*/30 * * * *"`
	ReconcileBatchSize int    `envconfig:"RECONCILE_BATCH_SIZE" default:"25"`

	SnapshotKeep int `envconfig:"SNAPSHOT_KEEP" default:"4"`

	Koha    KohaConfig    `envconfig:"KOHA"`
	DSpace  DSpaceConfig  `envconfig:"DSPACE"`
	VuFind  VuFindConfig  `envconfig:"VUFIND"`
	Storage StorageConfig `envconfig:"STORAGE"`
	S3      S3Config      `envconfig:"S3"`
	Breaker BreakerConfig `envconfig:"BREAKER"`
}

// KohaConfig beschreibt den Zugang zum Bibliothekskatalog.
type KohaConfig struct {
	APIURL       string        `envconfig:"API_URL" default:"http://127.0.0.1:8085/api/v1"`
	OPACURL      string        `envconfig:"OPAC_URL" default:"http://127.0.0.1:8085"`
	ClientID     string        `envconfig:"CLIENT_ID"`
	ClientSecret string        `envconfig:"CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"10s"`
	RateLimit    float64       `envconfig:"RATE_LIMIT" default:"10"`

	// Angaben für das digitale Exemplar, das an neue Titelsätze gehängt wird.
	LibraryID  string `envconfig:"LIBRARY_ID" default:"CPL"`
	ItemTypeID string `envconfig:"ITEM_TYPE_ID" default:"EBOOK"`
}

// DSpaceConfig beschreibt den Zugang zum Repository.
type DSpaceConfig struct {
	APIURL         string        `envconfig:"API_URL" default:"http://localhost:8080/server/api"`
	UIURL          string        `envconfig:"UI_URL" default:"http://localhost:4000"`
	Email          string        `envconfig:"EMAIL"`
	Password       string        `envconfig:"PASSWORD"`
	CollectionUUID string        `envconfig:"COLLECTION_UUID"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"25m"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"10s"`
	RateLimit      float64       `envconfig:"RATE_LIMIT" default:"10"`
	// SimulateWrites schaltet den Simulationsmodus ein: Store erzeugt
	// Kennungen lokal, statt ins Repository zu schreiben.
	SimulateWrites bool `envconfig:"SIMULATE_WRITES" default:"false"`
}

// VuFindConfig beschreibt den Zugang zur Discovery-Schicht und ihrem Solr-Index.
type VuFindConfig struct {
	URL         string        `envconfig:"URL" default:"http://localhost:8090"`
	SolrURL     string        `envconfig:"SOLR_URL" default:"http://localhost:8983/solr"`
	SolrCores   []string      `envconfig:"SOLR_CORES" default:"biblio,authority,reserves"`
	IndexCore   string        `envconfig:"INDEX_CORE" default:"biblio"`
	Institution string        `envconfig:"INSTITUTION" default:"Ministry of Innovation & Technology"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"5s"`
	RateLimit   float64       `envconfig:"RATE_LIMIT" default:"10"`
}

// StorageConfig wählt den Blob-Speicher für hochgeladene Dateien und Snapshots.
type StorageConfig struct {
	Backend  string `envconfig:"BACKEND" default:"local"`
	LocalDir string `envconfig:"LOCAL_DIR" default:"uploads"`
}

// S3Config wird nur bei STORAGE_BACKEND=s3 benötigt.
type S3Config struct {
	Key    string `envconfig:"KEY"`
	Secret string `envconfig:"SECRET"`
	URL    string `envconfig:"URL"`
	Region string `envconfig:"REGION" default:"us-east-1"`
	Bucket string `envconfig:"BUCKET"`
}

// BreakerConfig steuert die Circuit Breaker vor den Backend-Systemen.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"OPEN_TIMEOUT" default:"30s"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Validate prüft Kombinationen, die envconfig allein nicht abbilden kann.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBUser == "" {
			return fmt.Errorf("DB_USER is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.S3.URL == "" || c.S3.Bucket == "" || c.S3.Key == "" || c.S3.Secret == "" {
			return fmt.Errorf("S3_URL, S3_BUCKET, S3_KEY and S3_SECRET are required for STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.SearchMaxLimit <= 0 {
		return fmt.Errorf("SEARCH_MAX_LIMIT must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}
