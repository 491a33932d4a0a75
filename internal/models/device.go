package models

import (
	"time"

	"github.com/google/uuid"
)

type Device struct {
	ID                uuid.UUID `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Name              string    `json:"name"`
	LastSyncTimestamp time.Time `json:"last_sync_timestamp"`
	CreatedAt         time.Time `json:"created_at"`
}
