package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Offer statuses. At most one offer per thread is pending at any time; the
// pending offer is the "ball in your court" token for the counterparty.
const (
	OfferPending   = "pending"
	OfferCountered = "countered"
	OfferAccepted  = "accepted"
	OfferRejected  = "rejected"
)

// NegotiationOffer is one message in a negotiation thread. Offers chain via
// parent_offer_id; all offers of a thread share the root offer's ID as
// thread_id so the current pending offer is a single indexed lookup instead
// of a find-the-last-record scan.
type NegotiationOffer struct {
	OfferID         uuid.UUID  `gorm:"column:offer_id;type:uuid;primaryKey" json:"offer_id"`
	ThreadID        uuid.UUID  `gorm:"column:thread_id;type:uuid;not null;index" json:"thread_id"`
	ListingID       uuid.UUID  `gorm:"column:listing_id;type:uuid;not null" json:"listing_id"`
	BuyerOrgID      uuid.UUID  `gorm:"column:buyer_org_id;type:uuid;not null" json:"buyer_org_id"`
	SellerOrgID     uuid.UUID  `gorm:"column:seller_org_id;type:uuid;not null" json:"seller_org_id"`
	AuthorOrgID     uuid.UUID  `gorm:"column:author_org_id;type:uuid;not null" json:"author_org_id"`
	AuthorUserID    uuid.UUID  `gorm:"column:author_user_id;type:uuid;not null" json:"author_user_id"`
	PricePerTon     float64    `gorm:"column:price_per_ton;type:decimal(18,2);not null" json:"price_per_ton"`
	Tons            float64    `gorm:"column:tons;type:decimal(18,2);not null" json:"tons"`
	Note            *string    `gorm:"column:note" json:"note"`
	Status          string     `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"`
	ParentOfferID   *uuid.UUID `gorm:"column:parent_offer_id;type:uuid" json:"parent_offer_id"`
	PurchaseOrderID *uuid.UUID `gorm:"column:purchase_order_id;type:uuid" json:"purchase_order_id"`
	CreatedAt       time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (NegotiationOffer) TableName() string {
	return "NegotiationOffers"
}

func (o *NegotiationOffer) BeforeCreate(tx *gorm.DB) error {
	if o.OfferID == uuid.Nil {
		o.OfferID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether the offer closes its thread.
func (o *NegotiationOffer) IsTerminal() bool {
	return o.Status == OfferAccepted || o.Status == OfferRejected
}
