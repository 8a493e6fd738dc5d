package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/facturas-api/internal/application/ports"
	"github.com/jhoicas/facturas-api/pkg/config"
)

var _ ports.ObjectStorage = (*Storage)(nil)

// Storage implementación del puerto ObjectStorage sobre Amazon S3.
// Los archivos se archivan bajo el prefijo invoices/ con una clave
// timestampeada, de modo que dos subidas del mismo nombre nunca chocan.
type Storage struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

// New construye el adaptador a partir de la configuración del servicio.
// Si no hay credenciales estáticas en la configuración se usa la cadena
// de credenciales por defecto del SDK.
func New(ctx context.Context, cfg config.S3Config) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cargar configuración AWS: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg)
	return &Storage{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// Put sube el contenido y devuelve la clave y la URL pública del objeto.
func (s *Storage) Put(ctx context.Context, content []byte, suggestedName, mimeType string) (*ports.StoredObject, error) {
	key := buildKey(suggestedName)
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("subir objeto a S3: %w", err)
	}
	return &ports.StoredObject{
		Key: key,
		URL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key),
	}, nil
}

// PresignedGet genera una URL de descarga temporal para una clave existente.
func (s *Storage) PresignedGet(ctx context.Context, key string, ttlSeconds int) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(time.Duration(ttlSeconds)*time.Second))
	if err != nil {
		return "", fmt.Errorf("presignar objeto S3: %w", err)
	}
	return req.URL, nil
}

// buildKey genera la clave: invoices/<unix>_<nombre saneado>. El saneado
// descompone acentos, descarta lo no ASCII y reduce el nombre a
// [a-zA-Z0-9._-], conservando la extensión.
func buildKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if clean, _, err := transform.String(t, base); err == nil {
		base = clean
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	safe := b.String()
	if safe == "" || safe == "." {
		safe = "documento"
	}
	return fmt.Sprintf("invoices/%d_%s", time.Now().Unix(), safe)
}
