// internal/listings/upload.go

package listings

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// UploadKind separates listing photos from printable model files;
// each kind has its own extension whitelist and size cap.
type UploadKind string

const (
	UploadKindPhoto UploadKind = "photo"
	UploadKindModel UploadKind = "model"
)

var photoExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var modelExts = map[string]bool{
	".stl": true, ".obj": true, ".3mf": true, ".step": true, ".gcode": true,
}

type UploadConfig struct {
	UseS3          bool
	S3Bucket       string
	AWSRegion      string
	LocalUploadDir string
	BaseURL        string
	MaxSizeBytes   int64
}

type UploadService struct {
	s3Client   *s3.S3
	bucketName string
	baseURL    string
	uploadDir  string
	useS3      bool
	maxSize    int64
}

func NewUploadService(config UploadConfig) (*UploadService, error) {
	us := &UploadService{
		bucketName: config.S3Bucket,
		baseURL:    config.BaseURL,
		uploadDir:  config.LocalUploadDir,
		useS3:      config.UseS3,
		maxSize:    config.MaxSizeBytes,
	}
	if us.maxSize == 0 {
		us.maxSize = 50 << 20
	}

	if config.UseS3 {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(config.AWSRegion),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		us.s3Client = s3.New(sess)
	} else {
		if err := os.MkdirAll(config.LocalUploadDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	return us, nil
}

// UploadFile stores the file and returns its public URL
func (us *UploadService) UploadFile(file multipart.File, header *multipart.FileHeader, kind UploadKind) (string, error) {
	if err := us.validateFile(header, kind); err != nil {
		return "", err
	}

	filename := generateFilename(header.Filename)

	if us.useS3 {
		return us.uploadToS3(file, filename, header, kind)
	}
	return us.uploadToLocal(file, filename, kind)
}

func (us *UploadService) uploadToS3(file multipart.File, filename string, header *multipart.FileHeader, kind UploadKind) (string, error) {
	buffer := bytes.NewBuffer(nil)
	if _, err := io.Copy(buffer, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	key := fmt.Sprintf("listings/%s/%s/%s", kind, time.Now().Format("2006/01/02"), filename)

	_, err := us.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:             aws.String(us.bucketName),
		Key:                aws.String(key),
		Body:               bytes.NewReader(buffer.Bytes()),
		ContentType:        aws.String(header.Header.Get("Content-Type")),
		ContentDisposition: aws.String("inline"),
		ACL:                aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", us.bucketName, key), nil
}

func (us *UploadService) uploadToLocal(file multipart.File, filename string, kind UploadKind) (string, error) {
	dateDir := time.Now().Format("2006/01/02")
	fullDir := filepath.Join(us.uploadDir, "listings", string(kind), dateDir)

	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dest, err := os.Create(filepath.Join(fullDir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return fmt.Sprintf("%s/uploads/listings/%s/%s/%s", us.baseURL, kind, dateDir, filename), nil
}

func (us *UploadService) validateFile(header *multipart.FileHeader, kind UploadKind) error {
	if header.Size > us.maxSize {
		return fmt.Errorf("file size exceeds maximum of %dMB", us.maxSize>>20)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := photoExts
	if kind == UploadKindModel {
		allowed = modelExts
	}
	if !allowed[ext] {
		return fmt.Errorf("file type %s not allowed for %s uploads", ext, kind)
	}
	return nil
}

func generateFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return uuid.New().String() + ext
}
