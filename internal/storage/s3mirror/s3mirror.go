// Пакет s3mirror — зеркалирование готовых PDF предложений в S3/MinIO.
// Зеркало вспомогательное: основная копия всегда на локальном диске.
package s3mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bigkaa/senadocs/internal/config"
)

// ObjectAPI — используемое подмножество клиента S3.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Mirror копирует файлы в бакет и удаляет их оттуда.
type Mirror struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// New создаёт зеркало по конфигурации (SD_S3_*).
// Для MinIO используется path-style адресация.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.S3Bucket, cfg.S3Prefix, logger), nil
}

// NewWithClient создаёт зеркало с готовым клиентом.
func NewWithClient(client ObjectAPI, bucket, prefix string, logger *slog.Logger) *Mirror {
	return &Mirror{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With(slog.String("component", "s3mirror")),
	}
}

// Key возвращает ключ объекта для локального файла.
func (m *Mirror) Key(localPath string) string {
	return path.Join(m.prefix, filepath.Base(localPath))
}

// Upload загружает локальный PDF в бакет под ключом Key(localPath).
func (m *Mirror) Upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла для зеркала: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("ошибка получения размера файла: %w", err)
	}

	key := m.Key(localPath)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки %s в S3: %w", key, err)
	}

	m.logger.Debug("Файл загружен в S3",
		slog.String("bucket", m.bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size()),
	)
	return nil
}

// Remove удаляет объект, соответствующий локальному файлу.
// Отсутствие объекта S3 не считает ошибкой.
func (m *Mirror) Remove(ctx context.Context, localPath string) error {
	key := m.Key(localPath)
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления %s из S3: %w", key, err)
	}
	return nil
}
