// Package archive exports completed sessions to blob storage so the Redis
// session store only holds live work. Exports are additive; nothing in the
// session store is deleted.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/pkg/api"
)

type (
	// Exporter writes session snapshots to a gocloud.dev bucket, supporting
	// S3, GCS, Azure Blob Storage, and S3-compatible stores
	Exporter struct {
		bucket *blob.Bucket
		prefix string
	}

	// Record is the stored form of one exported session
	Record struct {
		SessionID  api.SessionID     `json:"session_id"`
		ExportedAt time.Time         `json:"exported_at"`
		State      *api.SessionState `json:"state"`
	}
)

// ErrArchiveNotFound is returned when no export exists for a session
var ErrArchiveNotFound = errors.New("session archive not found")

func NewExporter(
	ctx context.Context, cfg *config.ArchiveConfig,
) (*Exporter, error) {
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	return &Exporter{bucket: bucket, prefix: cfg.Prefix}, nil
}

// Export writes a session snapshot, replacing any earlier export
func (e *Exporter) Export(
	ctx context.Context, st *api.SessionState,
) error {
	data, err := json.Marshal(&Record{
		SessionID:  st.ID,
		ExportedAt: time.Now(),
		State:      st,
	})
	if err != nil {
		return err
	}
	return e.bucket.WriteAll(ctx, e.keyFor(st.ID), data, nil)
}

// Get reads back one exported session
func (e *Exporter) Get(
	ctx context.Context, id api.SessionID,
) (*Record, error) {
	data, err := e.bucket.ReadAll(ctx, e.keyFor(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Has reports whether an export already exists for a session
func (e *Exporter) Has(
	ctx context.Context, id api.SessionID,
) (bool, error) {
	return e.bucket.Exists(ctx, e.keyFor(id))
}

func (e *Exporter) Close() error {
	return e.bucket.Close()
}

func (e *Exporter) keyFor(id api.SessionID) string {
	return e.prefix + string(id) + ".json"
}
