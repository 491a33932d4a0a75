package services

import (
	"errors"

	"github.com/prudhvinik1/smsledger/internal/repositories"
)

var (
	ErrInvalidInput   = repositories.ErrInvalidInput
	ErrNotFound       = repositories.ErrNotFound
	ErrDuplicate      = repositories.ErrDuplicate
	ErrUnauthorized   = errors.New("unauthorized")
	ErrStorageFailure = errors.New("storage failure")
)
