package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
)

// BlobRepo stores uploaded binary assets.
type BlobRepo struct {
	db *database.DB
}

func NewBlobRepo(db *database.DB) *BlobRepo { return &BlobRepo{db: db} }

// ContentETag is the cache validator stored with every blob.
func ContentETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CreateTx stores data and returns the new blob with its id and etag.
func (r *BlobRepo) CreateTx(ctx context.Context, tx *sql.Tx, mimeType string, data []byte) (*model.Blob, error) {
	b := &model.Blob{MimeType: mimeType, Data: data, ETag: ContentETag(data)}
	id, err := r.db.InsertID(ctx, tx,
		"INSERT INTO blobs (mimetype, data, etag) VALUES (?, ?, ?)", b.MimeType, b.Data, b.ETag)
	if err != nil {
		return nil, err
	}
	b.ID = id
	return b, nil
}

// DeleteTx removes a blob; a missing id is not an error.
func (r *BlobRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM blobs WHERE id = ?"), id)
	return err
}

// ZoneImage returns the image blob of a zone.  ErrZoneNotFound when the
// zone does not exist, ErrBlobNotFound when it has no image.
func (r *BlobRepo) ZoneImage(ctx context.Context, zoneID int64) (*model.Blob, error) {
	var (
		iid sql.NullInt64
		b   model.Blob
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT iid FROM zones WHERE id = ?"), zoneID).Scan(&iid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}
	if !iid.Valid {
		return nil, ErrBlobNotFound
	}
	err = r.db.QueryRowContext(ctx, r.db.Rebind(
		"SELECT id, mimetype, data, etag FROM blobs WHERE id = ?"), iid.Int64).
		Scan(&b.ID, &b.MimeType, &b.Data, &b.ETag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return &b, nil
}
