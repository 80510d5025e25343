package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"storyboard-server/internal/models"

	"go.uber.org/zap"
)

// DocumentType is an accepted upload type.
type DocumentType string

const (
	DocumentText DocumentType = "txt"
	DocumentPDF  DocumentType = "pdf"
)

const acceptedTypes = ".txt (text/plain), .pdf (application/pdf)"

// Upload is a file as declared by the client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Service produces plain script text from typed input or uploaded files. It never touches
// project state.
type Service struct {
	ocr      OCRClient
	maxBytes int64
	logger   *zap.Logger
}

// NewService creates an ingestion service. maxBytes bounds uploads.
func NewService(ocr OCRClient, maxBytes int64, logger *zap.Logger) *Service {
	return &Service{
		ocr:      ocr,
		maxBytes: maxBytes,
		logger:   logger.Named("Ingest"),
	}
}

// FromText returns typed script text unchanged.
func (s *Service) FromText(text string) string {
	return text
}

// DetectType decides the document type from the file extension, or the content type when the
// file has no extension.
func DetectType(filename, contentType string) (DocumentType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return DocumentText, nil
	case ".pdf":
		return DocumentPDF, nil
	case "":
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mediaType {
			case "text/plain":
				return DocumentText, nil
			case "application/pdf":
				return DocumentPDF, nil
			}
		}
		declared := contentType
		if declared == "" {
			declared = "unknown"
		}
		return "", fmt.Errorf("%w: %s; accepted types are %s", models.ErrUnsupportedFileType, declared, acceptedTypes)
	default:
		return "", fmt.Errorf("%w: %s; accepted types are %s", models.ErrUnsupportedFileType, ext, acceptedTypes)
	}
}

// FromFile extracts script text from an upload. Unsupported types are rejected before the body is
// read or any network call is made. PDFs go to OCR and report progress through progress.
func (s *Service) FromFile(ctx context.Context, upload Upload, progress ProgressFunc) (string, error) {
	log := s.logger.With(zap.String("filename", upload.Filename), zap.String("contentType", upload.ContentType))

	docType, err := DetectType(upload.Filename, upload.ContentType)
	if err != nil {
		log.Info("Upload rejected", zap.Error(err))
		return "", err
	}

	content, err := s.readBounded(upload.Body)
	if err != nil {
		return "", err
	}

	switch docType {
	case DocumentText:
		if !utf8.Valid(content) {
			return "", fmt.Errorf("%w: text file is not valid UTF-8", models.ErrInvalidInput)
		}
		log.Debug("Text upload passed through", zap.Int("sizeBytes", len(content)))
		return string(content), nil
	default:
		if len(content) == 0 {
			return "", fmt.Errorf("%w: empty file", models.ErrInvalidInput)
		}
		return s.ocr.Extract(ctx, upload.Filename, content, progress)
	}
}

func (s *Service) readBounded(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: missing file body", models.ErrInvalidInput)
	}
	content, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	if int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", models.ErrFileTooLarge, s.maxBytes)
	}
	return content, nil
}
