package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config representa la configuración del servicio de viáticos
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Email    EmailConfig
	Storage  StorageConfig
	CloudOCR CloudOCRConfig
	LocalOCR LocalOCRConfig
	Sunat    SunatConfig
	Queue    QueueConfig
	Tax      TaxConfig
}

// ServerConfig representa la configuración del servidor HTTP
type ServerConfig struct {
	Port    string
	Host    string
	Env     string
	BaseURL string
}

// DatabaseConfig representa la configuración de la base de datos
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig representa la configuración de Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LoggingConfig representa la configuración de logging
type LoggingConfig struct {
	Level  string
	Format string
}

// EmailConfig representa la configuración de email
type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
}

// StorageConfig representa la configuración del storage S3 de comprobantes
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// CloudOCRConfig representa la configuración del proveedor OCR en la nube
type CloudOCRConfig struct {
	Enabled         bool
	Endpoint        string
	Key             string
	APIVersion      string
	ModelID         string
	Timeout         time.Duration
	PollingInterval time.Duration
	MaxPollAttempts int
}

// LocalOCRConfig representa la configuración del motor OCR local
type LocalOCRConfig struct {
	Binary          string
	TessdataDir     string
	DefaultLanguage string
	Preprocess      bool
	MaxFileSize     int64
	MaxPages        int
	DPI             int
}

// SunatConfig representa la configuración del cliente SUNAT
type SunatConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	TokenURL     string
	ValidateURL  string
	RUC          string
	Timeout      time.Duration
	TokenCache   bool
}

// QueueConfig representa la configuración de la cola de validación
type QueueConfig struct {
	ItemDelay time.Duration
}

// TaxConfig representa las tasas de IGV aplicables a los comprobantes
type TaxConfig struct {
	SpecialRate float64
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	// Cargar archivo .env si existe
	if err := godotenv.Load(); err != nil {
		// No es crítico si no existe el archivo .env
	}

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8082"),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Env:     getEnv("SERVER_ENV", "development"),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8082"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PGHOST", "localhost"),
			Port:     getEnv("PGPORT", "5432"),
			User:     getEnv("PGUSER", "postgres"),
			Password: getEnv("PGPASSWORD", "postgres"),
			Name:     getEnv("PGDATABASE", "viaticos"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("EMAIL_FROM", "notificaciones@viaticos.local"),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "comprobantes"),
		},
		CloudOCR: CloudOCRConfig{
			Enabled:         getEnvAsBool("CLOUD_OCR_ENABLED", false),
			Endpoint:        getEnv("CLOUD_OCR_ENDPOINT", ""),
			Key:             getEnv("CLOUD_OCR_KEY", ""),
			APIVersion:      getEnv("CLOUD_OCR_API_VERSION", "2023-07-31"),
			ModelID:         getEnv("CLOUD_OCR_MODEL_ID", "prebuilt-invoice"),
			Timeout:         getEnvAsDuration("CLOUD_OCR_TIMEOUT", 30*time.Second),
			PollingInterval: getEnvAsDuration("CLOUD_OCR_POLLING_INTERVAL", 2*time.Second),
			MaxPollAttempts: getEnvAsInt("CLOUD_OCR_MAX_POLL_ATTEMPTS", 15),
		},
		LocalOCR: LocalOCRConfig{
			Binary:          getEnv("TESSERACT_BINARY", "tesseract"),
			TessdataDir:     getEnv("TESSDATA_DIR", ""),
			DefaultLanguage: getEnv("OCR_DEFAULT_LANGUAGE", "spa"),
			Preprocess:      getEnvAsBool("OCR_PREPROCESS", false),
			MaxFileSize:     int64(getEnvAsInt("OCR_MAX_FILE_SIZE", 10*1024*1024)),
			MaxPages:        getEnvAsInt("OCR_MAX_PAGES", 10),
			DPI:             getEnvAsInt("OCR_DPI", 300),
		},
		Sunat: SunatConfig{
			ClientID:     getEnv("SUNAT_CLIENT_ID", ""),
			ClientSecret: getEnv("SUNAT_CLIENT_SECRET", ""),
			Scope:        getEnv("SUNAT_SCOPE", "https://api.sunat.gob.pe/v1/contribuyente/contribuyentes"),
			TokenURL:     getEnv("SUNAT_TOKEN_URL", "https://api-seguridad.sunat.gob.pe/v1/clientessol"),
			ValidateURL:  getEnv("SUNAT_VALIDATE_URL", "https://api.sunat.gob.pe/v1/contribuyente/contribuyentes"),
			RUC:          getEnv("SUNAT_RUC", ""),
			Timeout:      getEnvAsDuration("SUNAT_TIMEOUT", 30*time.Second),
			TokenCache:   getEnvAsBool("SUNAT_TOKEN_CACHE", false),
		},
		Queue: QueueConfig{
			ItemDelay: getEnvAsDuration("QUEUE_ITEM_DELAY", 2*time.Second),
		},
		Tax: TaxConfig{
			SpecialRate: getEnvAsFloat("TAX_SPECIAL_RATE", 0.10),
		},
	}

	return config, nil
}

// getEnv obtiene una variable de entorno o retorna un valor por defecto
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt obtiene una variable de entorno como entero
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool obtiene una variable de entorno como booleano
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsFloat obtiene una variable de entorno como flotante
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration obtiene una variable de entorno como duración
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// IsDevelopment retorna true si el entorno es de desarrollo
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction retorna true si el entorno es de producción
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN retorna la cadena de conexión a la base de datos
func (c *Config) GetDSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode
}

// GetRedisAddr retorna la dirección de Redis
func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}
