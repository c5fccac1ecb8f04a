package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
)

const defaultUploadDir = "uploads"

// UploadService stores verification photos on local disk
type UploadService struct {
	cfg        *config.Config
	deliveries *DeliveryService
	now        func() time.Time
}

// NewUploadService creates the upload service
func NewUploadService(cfg *config.Config, deliveries *DeliveryService) *UploadService {
	return &UploadService{cfg: cfg, deliveries: deliveries, now: time.Now}
}

// PhotoUpload result of a verification photo upload
type PhotoUpload struct {
	ImageURL string           `json:"imageUrl"`
	Delivery *models.Delivery `json:"delivery"`
}

// UploadDeliveryPhoto checks the caller may upload photoType, stores the file
// and records its url on the delivery.
func (s *UploadService) UploadDeliveryPhoto(ctx context.Context, partnerID, deliveryID uint, photoType string, file *multipart.FileHeader) (*PhotoUpload, error) {
	photoType = strings.ToLower(strings.TrimSpace(photoType))
	if err := s.deliveries.CheckUpload(partnerID, deliveryID, photoType); err != nil {
		return nil, err
	}
	url, err := s.SaveFile(file, constants.UploadSceneDeliveries)
	if err != nil {
		return nil, err
	}
	delivery, err := s.deliveries.AttachPhoto(ctx, partnerID, deliveryID, photoType, url)
	if err != nil {
		s.discard(url)
		return nil, err
	}
	return &PhotoUpload{ImageURL: url, Delivery: delivery}, nil
}

// SaveFile validates and writes file under <dir>/<scene>/yyyy/mm/<uuid><ext>.
// The returned path is relative to the public url.
func (s *UploadService) SaveFile(file *multipart.FileHeader, scene string) (string, error) {
	if file == nil {
		return "", ErrUploadTypeNotAllowed
	}
	limits := s.cfg.Upload
	if limits.MaxSize > 0 && file.Size > limits.MaxSize {
		return "", fmt.Errorf("%w: max %d MB", ErrUploadTooLarge, limits.MaxSize/1024/1024)
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if len(limits.AllowedExtensions) > 0 && (ext == "" || !isAllowedExtension(ext, limits.AllowedExtensions)) {
		return "", fmt.Errorf("%w: extension %q", ErrUploadTypeNotAllowed, ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	contentType, err := sniffContentType(src)
	if err != nil {
		return "", err
	}
	if len(limits.AllowedTypes) > 0 && !containsFold(limits.AllowedTypes, contentType) {
		return "", fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, contentType)
	}
	if strings.HasPrefix(contentType, "image/") {
		width, height, err := imageDimensions(src, contentType)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUploadTypeNotAllowed, err)
		}
		if (limits.MaxWidth > 0 && width > limits.MaxWidth) || (limits.MaxHeight > 0 && height > limits.MaxHeight) {
			return "", ErrUploadTooWide
		}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	now := s.now()
	year, month := now.Format("2006"), now.Format("01")
	filename := uuid.New().String() + ext
	relative := filepath.ToSlash(filepath.Join(scene, year, month, filename))
	savePath := filepath.Join(s.uploadDir(), filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(savePath)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return "/uploads/" + relative, nil
}

// UploadDir root directory served under /uploads
func (s *UploadService) UploadDir() string {
	return s.uploadDir()
}

func (s *UploadService) uploadDir() string {
	dir := strings.TrimSpace(s.cfg.Upload.Dir)
	if dir == "" {
		return defaultUploadDir
	}
	return dir
}

func (s *UploadService) discard(url string) {
	relative := strings.TrimPrefix(url, "/uploads/")
	if relative == url || relative == "" {
		return
	}
	if err := os.Remove(filepath.Join(s.uploadDir(), filepath.FromSlash(relative))); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnw("upload_discard_failed", "path", url, "error", err)
	}
}

func sniffContentType(src io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func isAllowedExtension(ext string, allowed []string) bool {
	for _, candidate := range allowed {
		normalized := strings.ToLower(strings.TrimSpace(candidate))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if ext == normalized {
			return true
		}
	}
	return false
}

func containsFold(items []string, value string) bool {
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

func imageDimensions(src io.ReadSeeker, contentType string) (int, int, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	if strings.EqualFold(contentType, "image/webp") {
		return webpDimensions(src)
	}
	cfg, _, err := image.DecodeConfig(src)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// webpDimensions reads the size from the first VP8/VP8L/VP8X chunk
func webpDimensions(src io.Reader) (int, int, error) {
	header := make([]byte, 20)
	if _, err := io.ReadFull(src, header); err != nil {
		return 0, 0, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WEBP" {
		return 0, 0, errors.New("invalid webp header")
	}
	chunk := string(header[12:16])
	data := make([]byte, 10)
	if _, err := io.ReadFull(src, data); err != nil {
		return 0, 0, err
	}
	switch chunk {
	case "VP8X":
		width := 1 + (int(data[4]) | int(data[5])<<8 | int(data[6])<<16)
		height := 1 + (int(data[7]) | int(data[8])<<8 | int(data[9])<<16)
		return width, height, nil
	case "VP8 ":
		width := int(binary.LittleEndian.Uint16(data[6:8]) & 0x3FFF)
		height := int(binary.LittleEndian.Uint16(data[8:10]) & 0x3FFF)
		return width, height, nil
	case "VP8L":
		if data[0] != 0x2f {
			return 0, 0, errors.New("invalid vp8l signature")
		}
		bits := binary.LittleEndian.Uint32(data[1:5])
		return int(bits&0x3FFF) + 1, int((bits>>14)&0x3FFF) + 1, nil
	default:
		return 0, 0, fmt.Errorf("unsupported webp chunk %q", chunk)
	}
}
