package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"45"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Graph Database (Memgraph/Neo4j)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Redis (invite links, sweeper locks)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Kafka Producer (social events)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaEventsTopic     string   `env:"KAFKA_EVENTS_TOPIC" env-default:"social-events"`
	KafkaBatchSize       int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
	KafkaNotifierEnabled bool     `env:"KAFKA_NOTIFIER_ENABLED" env-default:"true"`
	KafkaNotifierGroup   string   `env:"KAFKA_NOTIFIER_GROUP" env-default:"clover-notifier"`

	// Blob storage (S3-compatible)
	BlobEndpoint  string `env:"BLOB_ENDPOINT" env-default:"localhost:9000"`
	BlobAccessKey string `env:"BLOB_ACCESS_KEY" env-default:""`
	BlobSecretKey string `env:"BLOB_SECRET_KEY" env-default:""`
	BlobBucket    string `env:"BLOB_BUCKET" env-default:"clover-media"`
	BlobUseSSL    bool   `env:"BLOB_USE_SSL" env-default:"false"`
	BlobPublicURL string `env:"BLOB_PUBLIC_URL" env-default:""`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`

	// Feed long-poll
	FeedPollAttempts int           `env:"FEED_POLL_ATTEMPTS" env-default:"3"`
	FeedPollInterval time.Duration `env:"FEED_POLL_INTERVAL" env-default:"10s"`

	// Expiry sweeper
	SweeperEnabled    bool          `env:"SWEEPER_ENABLED" env-default:"true"`
	StickerTTL        time.Duration `env:"STICKER_TTL" env-default:"24h"`
	StickerSweepEvery time.Duration `env:"STICKER_SWEEP_EVERY" env-default:"24h"`
	CastSweepEvery    time.Duration `env:"CAST_SWEEP_EVERY" env-default:"1m"`
	SweeperLockTTL    time.Duration `env:"SWEEPER_LOCK_TTL" env-default:"60s"`

	// Invite links
	InviteLinkTTL       time.Duration `env:"INVITE_LINK_TTL" env-default:"24h"`
	InviteLinkMaxActive int           `env:"INVITE_LINK_MAX_ACTIVE" env-default:"5"`
	InviteLinkBaseURL   string        `env:"INVITE_LINK_BASE_URL" env-default:"http://localhost:3000/knock"`
}
