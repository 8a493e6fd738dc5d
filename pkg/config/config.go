package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	JWT        JWTConfig
	Mongo      MongoConfig
	S3         S3Config
	SQLite     SQLiteConfig
	OpenAI     OpenAIConfig
	Extraction ExtractionConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// MongoConfig configuración del almacén de documentos (facturas validadas).
type MongoConfig struct {
	URI      string // mongodb://... o mongodb+srv://...
	Database string
}

// S3Config configuración del almacén de objetos (archivos originales de factura).
// Si Bucket está vacío, el archivado a S3 queda deshabilitado.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      int // segundos de validez de las URLs firmadas de lectura
}

// SQLiteConfig configuración de la tabla local de credenciales.
type SQLiteConfig struct {
	Path string // ruta al archivo .db
}

// OpenAIConfig configuración del colaborador de extracción (visión + assistants).
type OpenAIConfig struct {
	APIKey string
	Model  string // p.ej. "gpt-4o"
}

// ExtractionConfig límites de entrada aplicados antes de cualquier llamada externa.
type ExtractionConfig struct {
	MaxFileBytes int64 // tamaño máximo permitido por archivo subido
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, MONGODB_URI, JWT_SECRET, etc.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "facturas-api"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "facturas-api"),
		},
		Mongo: MongoConfig{
			URI:      getString(v, "MONGODB_URI", "mongodb://localhost:27017"),
			Database: getString(v, "MONGODB_DB", "facturas_db"),
		},
		S3: S3Config{
			Region:          getString(v, "AWS_REGION", "us-east-1"),
			Bucket:          getString(v, "AWS_S3_BUCKET_NAME", ""),
			AccessKeyID:     getString(v, "AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getString(v, "AWS_SECRET_ACCESS_KEY", ""),
			PresignTTL:      getInt(v, "S3_PRESIGN_TTL_SECONDS", 3600),
		},
		SQLite: SQLiteConfig{
			Path: getString(v, "SQLITE_PATH", "./data/users.db"),
		},
		OpenAI: OpenAIConfig{
			APIKey: getString(v, "OPENAI_API_KEY", ""),
			Model:  getString(v, "OPENAI_MODEL", "gpt-4o"),
		},
		Extraction: ExtractionConfig{
			MaxFileBytes: int64(getInt(v, "EXTRACTION_MAX_FILE_BYTES", 1<<20)),
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
