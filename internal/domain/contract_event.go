package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contract event subject types.
const (
	SubjectListing  = "listing"
	SubjectThread   = "thread"
	SubjectOrder    = "order"
	SubjectDelivery = "delivery"
)

// ContractEvent is an append-only audit row written inside the same
// transaction as the mutation it records.
type ContractEvent struct {
	EventID      uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	SubjectType  string         `gorm:"column:subject_type;type:varchar(20);not null" json:"subject_type"`
	SubjectID    uuid.UUID      `gorm:"column:subject_id;type:uuid;not null;index" json:"subject_id"`
	EventType    string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData    datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	ActorOrgCode *string        `gorm:"column:actor_org_code" json:"actor_org_code"`
	CreatedAt    time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (ContractEvent) TableName() string {
	return "ContractEvents"
}

func (e *ContractEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
