package database

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/sirupsen/logrus"
)

// ObjectStorage representa el storage S3-compatible donde se guardan
// los archivos de comprobantes
type ObjectStorage struct {
	s3Client *s3.Client
	config   *config.StorageConfig
	logger   *logrus.Logger
}

// NewObjectStorage crea una nueva instancia del cliente de storage
func NewObjectStorage(cfg *config.StorageConfig, logger *logrus.Logger) (*ObjectStorage, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.Endpoint,
			SigningRegion:     cfg.Region,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &ObjectStorage{
		s3Client: s3Client,
		config:   cfg,
		logger:   logger,
	}, nil
}

// HealthCheck verifica la conexión al storage
func (s *ObjectStorage) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("error checking storage connection: %w", err)
	}
	return nil
}

// UploadVoucherFile sube el archivo de un comprobante y retorna su ruta
func (s *ObjectStorage) UploadVoucherFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading voucher file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.config.Bucket,
		"key":    key,
		"size":   len(data),
	}).Info("Archivo de comprobante almacenado")

	return fmt.Sprintf("%s/%s", s.config.Bucket, key), nil
}

// DownloadVoucherFile descarga el archivo de un comprobante por su clave
func (s *ObjectStorage) DownloadVoucherFile(ctx context.Context, key string) ([]byte, error) {
	output, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading voucher file: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading voucher file: %w", err)
	}
	return data, nil
}
