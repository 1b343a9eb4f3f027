package audio

import (
	"context"
	"fmt"

	"lojavox/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStore is the external object storage the ingested audio is
// delegated to.
type ObjectStore interface {
	Upload(ctx context.Context, key string, payload []byte, contentType string) (string, error)
	GenerateAudioKey(id, extension string) string
}

type Ingestor struct {
	store ObjectStore
}

func NewIngestor(store ObjectStore) *Ingestor {
	return &Ingestor{store: store}
}

// Ingest validates a recorded audio payload and hands it to object
// storage, returning a retrievable URL. Payloads over 16 MiB are
// rejected before any network call. Storage failures surface unmodified,
// without retry.
func (i *Ingestor) Ingest(ctx context.Context, payload []byte, mimeType string) (string, error) {
	if len(payload) > MaxAudioBytes {
		return "", fileTooLarge(fmt.Sprintf("audio payload is %d bytes, limit is %d", len(payload), MaxAudioBytes))
	}
	if len(payload) == 0 {
		return "", invalidFormat("audio payload is empty", "")
	}

	key := i.store.GenerateAudioKey(uuid.New().String(), extensionForMime(mimeType))

	url, err := i.store.Upload(ctx, key, payload, mimeType)
	if err != nil {
		return "", err
	}

	logger.Info("Audio ingested",
		zap.String("key", key),
		zap.Int("size", len(payload)))

	return url, nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}
