package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase order statuses. Advances draft -> active -> completed, never backward.
const (
	OrderDraft     = "draft"
	OrderActive    = "active"
	OrderCompleted = "completed"
)

// Signing sides.
const (
	SideBuyer  = "buyer"
	SideSeller = "seller"
)

// PurchaseOrder is the binding agreement created from an accepted negotiation.
// delivered_tons is maintained solely by the delivery ledger.
type PurchaseOrder struct {
	OrderID             uuid.UUID  `gorm:"column:order_id;type:uuid;primaryKey" json:"order_id"`
	OrderNumber         string     `gorm:"column:order_number;type:varchar(20);not null;uniqueIndex" json:"order_number"`
	BuyerOrgID          uuid.UUID  `gorm:"column:buyer_org_id;type:uuid;not null" json:"buyer_org_id"`
	SellerOrgID         uuid.UUID  `gorm:"column:seller_org_id;type:uuid;not null" json:"seller_org_id"`
	Destination         string     `gorm:"column:destination;not null" json:"destination"`
	ContractedTons      float64    `gorm:"column:contracted_tons;type:decimal(18,2);not null" json:"contracted_tons"`
	PricePerTon         float64    `gorm:"column:price_per_ton;type:decimal(18,2);not null" json:"price_per_ton"`
	DeliveryWindowStart *time.Time `gorm:"column:delivery_window_start" json:"delivery_window_start"`
	DeliveryWindowEnd   *time.Time `gorm:"column:delivery_window_end" json:"delivery_window_end"`
	MaxMoisturePercent  *float64   `gorm:"column:max_moisture_percent;type:decimal(5,2)" json:"max_moisture_percent"`
	QualityNotes        *string    `gorm:"column:quality_notes" json:"quality_notes"`
	Status              string     `gorm:"column:status;type:varchar(20);default:'draft'" json:"status"`
	DeliveredTons       float64    `gorm:"column:delivered_tons;type:decimal(18,2);not null;default:0" json:"delivered_tons"`
	BuyerSignedBy       *uuid.UUID `gorm:"column:buyer_signed_by;type:uuid" json:"buyer_signed_by"`
	BuyerSignedName     *string    `gorm:"column:buyer_signed_name" json:"buyer_signed_name"`
	SellerSignedBy      *uuid.UUID `gorm:"column:seller_signed_by;type:uuid" json:"seller_signed_by"`
	SellerSignedName    *string    `gorm:"column:seller_signed_name" json:"seller_signed_name"`
	SignedAt            *time.Time `gorm:"column:signed_at" json:"signed_at"`
	CompletedAt         *time.Time `gorm:"column:completed_at" json:"completed_at"`
	SourceOfferID       *uuid.UUID `gorm:"column:source_offer_id;type:uuid" json:"source_offer_id"`
	CreatedByUserID     uuid.UUID  `gorm:"column:created_by_user_id;type:uuid;not null" json:"created_by_user_id"`
	CreatedAt           time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt           time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PurchaseOrder) TableName() string {
	return "PurchaseOrders"
}

func (p *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if p.OrderID == uuid.Nil {
		p.OrderID = uuid.New()
	}
	return nil
}

// SignedOn reports whether the given side has already signed.
func (p *PurchaseOrder) SignedOn(side string) bool {
	if side == SideBuyer {
		return p.BuyerSignedBy != nil
	}
	return p.SellerSignedBy != nil
}

// ContractAllocation links a purchase order to the listing it draws tonnage
// from. Created atomically with the order; immutable afterward.
type ContractAllocation struct {
	AllocationID  uuid.UUID `gorm:"column:allocation_id;type:uuid;primaryKey" json:"allocation_id"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ListingID     uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	AllocatedTons float64   `gorm:"column:allocated_tons;type:decimal(18,2);not null" json:"allocated_tons"`
	CreatedAt     time.Time `gorm:"column:createdAt" json:"createdAt"`
}

func (ContractAllocation) TableName() string {
	return "ContractAllocations"
}

func (a *ContractAllocation) BeforeCreate(tx *gorm.DB) error {
	if a.AllocationID == uuid.Nil {
		a.AllocationID = uuid.New()
	}
	return nil
}

// SignatureEvent is an append-only audit record of one signing action.
// Only rows written by Sign are authoritative for the contract's legal state.
type SignatureEvent struct {
	SignatureID    uuid.UUID `gorm:"column:signature_id;type:uuid;primaryKey" json:"signature_id"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	SignerUserID   uuid.UUID `gorm:"column:signer_user_id;type:uuid;not null" json:"signer_user_id"`
	SignerOrgID    uuid.UUID `gorm:"column:signer_org_id;type:uuid;not null" json:"signer_org_id"`
	TypedName      string    `gorm:"column:typed_name;not null" json:"typed_name"`
	SignatureImage *string   `gorm:"column:signature_image" json:"signature_image"`
	Side           string    `gorm:"column:side;type:varchar(10);not null" json:"side"`
	BothSigned     bool      `gorm:"column:both_signed;not null;default:false" json:"both_signed"`
	SignedAt       time.Time `gorm:"column:signed_at;not null" json:"signed_at"`
	CreatedAt      time.Time `gorm:"column:createdAt" json:"createdAt"`
}

func (SignatureEvent) TableName() string {
	return "SignatureEvents"
}

func (s *SignatureEvent) BeforeCreate(tx *gorm.DB) error {
	if s.SignatureID == uuid.Nil {
		s.SignatureID = uuid.New()
	}
	return nil
}
