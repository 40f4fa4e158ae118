package model

import "time"

// SaveMode tells whether a save created a listing or edited one.
type SaveMode string

const (
	SaveModeCreate SaveMode = "create"
	SaveModeEdit   SaveMode = "edit"
)

// SaveOutcome is the result of a save attempt.
type SaveOutcome string

const (
	SaveOutcomeOK      SaveOutcome = "ok"
	SaveOutcomeInvalid SaveOutcome = "invalid"
	SaveOutcomeFailed  SaveOutcome = "failed"
)

// SaveRecord journals one attempt to push an edit session to the marketplace.
type SaveRecord struct {
	ID            int64       `gorm:"primaryKey" json:"id"`
	SessionID     string      `gorm:"size:64;not null" json:"session_id"`
	ServiceID     string      `gorm:"index;size:64" json:"service_id"`
	Mode          SaveMode    `gorm:"size:16;not null" json:"mode"`
	Shape         string      `gorm:"size:16;not null" json:"shape"`
	SlotCount     int         `gorm:"not null" json:"slot_count"`
	ImagesAdded   int         `gorm:"not null" json:"images_added"`
	ImagesRemoved int         `gorm:"not null" json:"images_removed"`
	FailedDeletes int         `gorm:"not null" json:"failed_deletes"`
	Outcome       SaveOutcome `gorm:"size:16;not null" json:"outcome"`
	Error         string      `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
}
