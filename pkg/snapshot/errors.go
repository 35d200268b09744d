package snapshot

import apperrors "github.com/matzehuels/shelfmark/pkg/errors"

func notFound(filename string) error {
	return apperrors.New(apperrors.ErrCodeNotFound, "snapshot %s not found in shared store", filename)
}

// IsNotFound reports whether err means the snapshot is absent.
func IsNotFound(err error) bool {
	return apperrors.Is(err, apperrors.ErrCodeNotFound)
}
