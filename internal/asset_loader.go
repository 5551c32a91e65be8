package internal

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lychee-technology/propval"
	"go.uber.org/zap"
)

// s3Fetcher downloads s3:// locations.
type s3Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, string, error)
}

// AssetLoader turns a chosen asset location into an asset property value.
// Local files and s3:// objects become data URIs; http(s) URLs and data URIs
// are used as they are.
type AssetLoader struct {
	maxBytes int64
	s3       s3Fetcher
}

var _ propval.AssetLoader = (*AssetLoader)(nil)

// NewAssetLoader creates a loader. s3 may be nil, in which case s3://
// locations are rejected.
func NewAssetLoader(maxBytes int64, s3 *S3AssetSource) *AssetLoader {
	l := &AssetLoader{maxBytes: maxBytes}
	if s3 != nil {
		l.s3 = s3
	}
	return l
}

func (l *AssetLoader) Load(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case location == "":
		return "", propval.NewAssetError(propval.ErrCodeAssetNotFound, location, errors.New("empty location"))
	case strings.HasPrefix(location, "data:"),
		strings.HasPrefix(location, "http://"),
		strings.HasPrefix(location, "https://"):
		return location, nil
	case strings.HasPrefix(location, "s3://"):
		return l.loadS3(ctx, location)
	default:
		return l.loadFile(strings.TrimPrefix(location, "file://"))
	}
}

func (l *AssetLoader) loadS3(ctx context.Context, location string) (string, error) {
	if l.s3 == nil {
		return "", propval.NewAssetError(propval.ErrCodeAssetFailed, location, errors.New("s3 assets are not configured"))
	}
	data, contentType, err := l.s3.Fetch(ctx, location)
	if err != nil {
		return "", err
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return "", propval.NewAssetError(propval.ErrCodeAssetTooLarge, location, nil).WithDetail("size", len(data))
	}
	if contentType == "" || contentType == "binary/octet-stream" {
		contentType = detectMediaType(location, data)
	}
	zap.S().Debugw("loaded s3 asset", "location", location, "bytes", len(data), "mediaType", contentType)
	return dataURI(contentType, data), nil
}

func (l *AssetLoader) loadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", propval.NewAssetError(propval.ErrCodeAssetNotFound, path, err)
		}
		return "", propval.NewAssetError(propval.ErrCodeAssetFailed, path, err)
	}
	if info.IsDir() {
		return "", propval.NewAssetError(propval.ErrCodeAssetFailed, path, errors.New("location is a directory"))
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return "", propval.NewAssetError(propval.ErrCodeAssetTooLarge, path, nil).
			WithDetail("size", info.Size()).
			WithDetail("maxBytes", l.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", propval.NewAssetError(propval.ErrCodeAssetFailed, path, err)
	}
	return dataURI(detectMediaType(path, data), data), nil
}

// detectMediaType prefers the extension and falls back to content sniffing.
func detectMediaType(name string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
