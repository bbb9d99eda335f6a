package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryConfirmed is the only load status. Loads are amended, never deleted.
const DeliveryConfirmed = "confirmed"

// PoundsPerTon converts net scale weight (lbs) into the contract unit of
// account (tons).
const PoundsPerTon = 2000.0

// DeliveryLoad is one weighed truckload delivered against an active purchase
// order. net_weight_lbs = gross - tare and must be positive.
type DeliveryLoad struct {
	LoadID           uuid.UUID `gorm:"column:load_id;type:uuid;primaryKey" json:"load_id"`
	LoadNumber       string    `gorm:"column:load_number;type:varchar(20);not null;uniqueIndex" json:"load_number"`
	OrderID          uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ListingID        uuid.UUID `gorm:"column:listing_id;type:uuid;not null" json:"listing_id"`
	GrossWeightLbs   float64   `gorm:"column:gross_weight_lbs;type:decimal(18,2);not null" json:"gross_weight_lbs"`
	TareWeightLbs    float64   `gorm:"column:tare_weight_lbs;type:decimal(18,2);not null" json:"tare_weight_lbs"`
	NetWeightLbs     float64   `gorm:"column:net_weight_lbs;type:decimal(18,2);not null" json:"net_weight_lbs"`
	BaleCount        int       `gorm:"column:bale_count;not null" json:"bale_count"`
	WetBaleCount     int       `gorm:"column:wet_bale_count;not null;default:0" json:"wet_bale_count"`
	Note             *string   `gorm:"column:note" json:"note"`
	RecordedByUserID uuid.UUID `gorm:"column:recorded_by_user_id;type:uuid;not null" json:"recorded_by_user_id"`
	DeliveredAt      time.Time `gorm:"column:delivered_at;not null" json:"delivered_at"`
	Status           string    `gorm:"column:status;type:varchar(20);default:'confirmed'" json:"status"`
	CreatedAt        time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (DeliveryLoad) TableName() string {
	return "DeliveryLoads"
}

func (d *DeliveryLoad) BeforeCreate(tx *gorm.DB) error {
	if d.LoadID == uuid.Nil {
		d.LoadID = uuid.New()
	}
	return nil
}

// DerivedTons is the tonnage this load contributes to the order's
// delivered_tons accumulator (weight-based, not bale-count based).
func (d *DeliveryLoad) DerivedTons() float64 {
	return RoundTons(d.NetWeightLbs / PoundsPerTon)
}

// AvgBaleWeightLbs returns nil when bale_count is zero; consumers must treat
// that as not computable, not as zero.
func (d *DeliveryLoad) AvgBaleWeightLbs() *float64 {
	if d.BaleCount <= 0 {
		return nil
	}
	avg := d.NetWeightLbs / float64(d.BaleCount)
	return &avg
}
