package snapshot

import (
	"bytes"

	"github.com/parquet-go/parquet-go"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

// Encode writes rows as a Snappy-compressed Parquet file. The schema is
// derived from T's `parquet` struct tags; pointer fields become optional
// (nullable) columns.
func Encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err, "encode snapshot")
	}
	return buf.Bytes(), nil
}

// Decode reads a Parquet file produced by [Encode].
func Decode[T any](data []byte) ([]T, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeSnapshotCorrupt, "empty snapshot")
	}
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeSnapshotCorrupt, err, "decode snapshot")
	}
	return rows, nil
}
