package repository

import (
	"errors"

	"github.com/google/uuid"

	"github.com/tapdin/planner/internal/domain/errs"
)

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("store closed")

// ParseID validates a UUID plan id, failing with errs.ErrInvalidID.
func ParseID(op, id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errs.WrapKind(op, errs.ErrInvalidID, err)
	}
	return u, nil
}
