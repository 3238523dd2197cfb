package docstore

import (
	"fmt"

	"github.com/statustracker/backend/internal/domain"
)

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
