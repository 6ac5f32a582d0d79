package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PlaySessionStatus string

const (
	PlaySessionStatusActive PlaySessionStatus = "active"
	PlaySessionStatusClosed PlaySessionStatus = "closed"
)

// PlaySession is the audit row behind one embedded-game visit. The
// TransferredOut flag is the durable side of the one-shot close guarantee:
// it flips to true at most once, when the winning exit trigger's sweep
// succeeds.
type PlaySession struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	PlayerID     uuid.UUID         `gorm:"type:uuid;index" json:"player_id"`
	PlatformCode string            `gorm:"size:32;index" json:"platform_code"`
	VendorCode   string            `gorm:"size:32" json:"vendor_code"`
	GameType     string            `gorm:"size:32" json:"game_type"`
	GameCode     string            `gorm:"size:64" json:"game_code"`
	LaunchURL    string            `gorm:"size:1024" json:"-"`
	Status       PlaySessionStatus `gorm:"size:16;index" json:"status"`

	ExitTrigger    string `gorm:"size:32" json:"exit_trigger,omitempty"`
	TransferredOut bool   `json:"transferred_out"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"-"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func (ps *PlaySession) BeforeCreate(tx *gorm.DB) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	return nil
}

type TransferDirection string

const (
	TransferDirectionIn  TransferDirection = "in"
	TransferDirectionOut TransferDirection = "out"
)

// TransferLog records every wallet movement the gateway asked the platform
// for, successful or not.
type TransferLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	PlayerID     uuid.UUID         `gorm:"type:uuid;index" json:"player_id"`
	SessionID    *uuid.UUID        `gorm:"type:uuid;index" json:"session_id,omitempty"`
	PlatformCode string            `gorm:"size:32" json:"platform_code"`
	Direction    TransferDirection `gorm:"size:8" json:"direction"`
	Amount       decimal.Decimal   `gorm:"type:numeric(20,2)" json:"amount"`
	RefID        string            `gorm:"size:64;index" json:"ref_id"`
	Status       string            `gorm:"size:16" json:"status"`
	Message      string            `gorm:"size:255" json:"message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
