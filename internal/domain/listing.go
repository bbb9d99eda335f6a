package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing statuses. A listing is reserved exactly once, when a negotiation
// over it is accepted, and never returns to available.
const (
	ListingAvailable = "available"
	ListingReserved  = "reserved"
	ListingClosed    = "closed"
)

// Listing is a grower's sellable hay stack.
type Listing struct {
	ListingID         uuid.UUID `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	StackID           string    `gorm:"column:stack_id;type:varchar(20);not null;uniqueIndex" json:"stack_id"`
	SellerOrgID       uuid.UUID `gorm:"column:seller_org_id;type:uuid;not null" json:"seller_org_id"`
	Product           string    `gorm:"column:product;not null" json:"product"`
	Cutting           *string   `gorm:"column:cutting" json:"cutting"`
	BaleType          *string   `gorm:"column:bale_type" json:"bale_type"`
	AskingPricePerTon float64   `gorm:"column:asking_price_per_ton;type:decimal(18,2);not null" json:"asking_price_per_ton"`
	EstimatedTons     float64   `gorm:"column:estimated_tons;type:decimal(18,2);not null" json:"estimated_tons"`
	MoisturePercent   *float64  `gorm:"column:moisture_percent;type:decimal(5,2)" json:"moisture_percent"`
	PriceFirm         bool      `gorm:"column:price_firm;not null;default:false" json:"price_firm"`
	Status            string    `gorm:"column:status;type:varchar(20);default:'available'" json:"status"`
	CreatedAt         time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "Listings"
}

// BeforeCreate sets listing_id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}
