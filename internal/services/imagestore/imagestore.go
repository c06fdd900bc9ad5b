package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/framelight/previz-server/internal/adapters"
	"github.com/framelight/previz-server/internal/services/filestorage"
	"github.com/framelight/previz-server/internal/utils/hashutil"
	"github.com/framelight/previz-server/internal/utils/imageutil"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const thumbnailEdge = 512

// Store mirrors provider-hosted images into our own file storage so a
// lineage survives provider URL expiry. Files are content-addressed by
// blake3 hash.
type Store struct {
	storage filestorage.FileStorage
	client  *http.Client
	logger  *zap.Logger
}

func NewStore(storage filestorage.FileStorage, logger *zap.Logger) *Store {
	return &Store{
		storage: storage,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Mirror persists the generated image and a thumbnail, returning the served
// URLs. Inline bytes are used when present; otherwise the provider URL is
// downloaded.
func (s *Store) Mirror(ctx context.Context, img adapters.GeneratedImage) (string, string, error) {
	data := img.Data
	if data == nil {
		downloaded, err := s.download(ctx, img.Url)
		if err != nil {
			return "", "", err
		}
		data = downloaded
	}

	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		ext = ".png"
	}

	name := hashutil.Blake3Hash(data)
	url, err := s.storage.Upload(filestorage.NewFileInfo(name, ext, data, false))
	if err != nil {
		return "", "", fmt.Errorf("failed to upload image: %w", err)
	}

	thumbUrl := ""
	thumb, err := imageutil.Thumbnail(data, thumbnailEdge)
	if err != nil {
		// A missing thumbnail is cosmetic; the full image is already stored.
		s.logger.Warn("failed to render thumbnail", zap.Error(err))
	} else {
		thumbUrl, err = s.storage.Upload(filestorage.NewFileInfo(name+"_thumb", ".jpg", thumb, false))
		if err != nil {
			s.logger.Warn("failed to upload thumbnail", zap.Error(err))
			thumbUrl = ""
		}
	}

	return url, thumbUrl, nil
}

func (s *Store) download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("image has neither inline data nor a url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("error downloading image (status %d)", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
