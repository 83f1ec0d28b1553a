package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"30"`

	// Object storage (any S3 compatible endpoint)
	S3BucketName    string `envconfig:"S3_BUCKET_NAME"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3UsePathStyle  bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"` // prefix of legacy rows that stored full URLs

	// Document rules
	MaxUploadBytes     int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"` // 10 MB
	PreviewURLTTLSec   uint   `envconfig:"PREVIEW_URL_TTL_SEC" default:"3600"`
	ExportURLTTLSec    uint   `envconfig:"EXPORT_URL_TTL_SEC" default:"604800"` // 7 days, the presign maximum
	CompletenessPolicy string `envconfig:"COMPLETENESS_POLICY" default:"count-any-status"`

	// Spreadsheet template imports below this confidence need force=true
	MinImportConfidence float64 `envconfig:"MIN_IMPORT_CONFIDENCE" default:"0.5"`

	OperationTimeoutSec uint `envconfig:"OPERATION_TIMEOUT_SEC" default:"10"`
	RenameTimeoutSec    uint `envconfig:"RENAME_TIMEOUT_SEC" default:"300"`
	RenameParallelism   int  `envconfig:"RENAME_PARALLELISM" default:"8"`
	RenameLeaseSec      uint `envconfig:"RENAME_LEASE_SEC" default:"600"`

	// Redis carries notifications and rename leases. Leave empty to log
	// notifications and lease in-process.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	NotifyChannel string `envconfig:"NOTIFY_CHANNEL" default:"trainingdesk.notifications"`
}
