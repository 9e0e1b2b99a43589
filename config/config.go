package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres    Postgres
	Telegram    Telegram
	Redis       Redis
	API         API
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
	Metrics     Metrics
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
}

type Telegram struct {
	Token      string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug    bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout  time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	QuoteApi QuoteApi
}

type QuoteApi struct {
	Url string `env:"QUOTE_API_URL" envDefault:"https://query1.finance.yahoo.com"`

	// appended to every ticker before it goes upstream, ASX listings by default
	TickerSuffix string `env:"QUOTE_API_TICKER_SUFFIX" envDefault:".AX"`
}

type Cache struct {
	PriceTTL           time.Duration `env:"CACHE_PRICE_TTL" envDefault:"15m"`
	MaxParallelFetches int           `env:"CACHE_MAX_PARALLEL_FETCHES" envDefault:"8"`
}

type Jobs struct {
	RefreshPricesDelay      time.Duration `env:"REFRESH_PRICES_JOB_DELAY" envDefault:"10s"`
	RefreshPricesInterval   time.Duration `env:"REFRESH_PRICES_JOB_INTERVAL" envDefault:"15m"`
	DeleteOldReportsCrontab string        `env:"DELETE_OLD_REPORTS_JOB_CRONTAB" envDefault:"0 3 * * *"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"72h"`
}

type Metrics struct {
	Addr string `env:"METRICS_ADDR" envDefault:":9090"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
