package negotiations

import (
	"context"
	"encoding/json"
	"fmt"

	"stackyard-backend/internal/application/contracts"
	"stackyard-backend/internal/application/directory"
	"stackyard-backend/internal/constants"
	"stackyard-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service runs the offer/counter-offer state machine. Every action on a
// thread read-checks the single pending offer and writes the new state in
// one transaction, so concurrent responses have exactly one winner.
type Service struct {
	DB        *gorm.DB
	Contracts *contracts.Service
}

// ProposeInput opens a thread. Tons defaults to the listing's estimated
// tonnage, frozen for the life of the thread.
type ProposeInput struct {
	Actor       directory.Actor
	StackID     string
	PricePerTon float64
	Tons        *float64
	Note        *string
}

func (s *Service) Propose(ctx context.Context, in ProposeInput) (*domain.NegotiationOffer, error) {
	if in.Actor.OrgID == uuid.Nil {
		return nil, fmt.Errorf("actor has no organization: %w", domain.ErrForbidden)
	}
	if in.PricePerTon <= 0 {
		return nil, fmt.Errorf("price per ton must be positive: %w", domain.ErrValidation)
	}
	if in.Tons != nil && *in.Tons <= 0 {
		return nil, fmt.Errorf("tons must be positive: %w", domain.ErrValidation)
	}

	var offer *domain.NegotiationOffer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing domain.Listing
		if err := tx.Where("stack_id = ?", in.StackID).First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("listing %s: %w", in.StackID, domain.ErrNotFound)
			}
			return err
		}
		if listing.Status != domain.ListingAvailable {
			return fmt.Errorf("listing %s is %s: %w", listing.StackID, listing.Status, domain.ErrConflict)
		}
		if listing.SellerOrgID == in.Actor.OrgID {
			return fmt.Errorf("cannot open a negotiation on your own listing: %w", domain.ErrForbidden)
		}

		tons := listing.EstimatedTons
		if in.Tons != nil {
			tons = domain.RoundTons(*in.Tons)
		}
		if tons > listing.EstimatedTons {
			return fmt.Errorf("proposed %v tons exceeds estimated %v: %w", tons, listing.EstimatedTons, domain.ErrValidation)
		}

		offer = &domain.NegotiationOffer{
			OfferID:      uuid.New(),
			ListingID:    listing.ListingID,
			BuyerOrgID:   in.Actor.OrgID,
			SellerOrgID:  listing.SellerOrgID,
			AuthorOrgID:  in.Actor.OrgID,
			AuthorUserID: in.Actor.UserID,
			PricePerTon:  in.PricePerTon,
			Tons:         tons,
			Note:         in.Note,
			Status:       domain.OfferPending,
		}
		offer.ThreadID = offer.OfferID // root offer anchors the thread
		if err := tx.Create(offer).Error; err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"stack_id":      listing.StackID,
			"price_per_ton": offer.PricePerTon,
			"tons":          offer.Tons,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectThread,
			SubjectID:    offer.ThreadID,
			EventType:    "PROPOSED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: orgCodePtr(in.Actor),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// RespondInput covers counter, accept, and reject: the action always targets
// the thread's current pending offer. Price/tons left nil carry forward from
// the most recent offer that specified them.
type RespondInput struct {
	Actor       directory.Actor
	ThreadID    uuid.UUID
	PricePerTon *float64
	Tons        *float64
	Note        *string
}

// Counter closes the current pending offer as countered and chains a new
// pending offer authored by the responding organization.
func (s *Service) Counter(ctx context.Context, in RespondInput) (*domain.NegotiationOffer, error) {
	if in.PricePerTon != nil && *in.PricePerTon <= 0 {
		return nil, fmt.Errorf("price per ton must be positive: %w", domain.ErrValidation)
	}
	if in.Tons != nil && *in.Tons <= 0 {
		return nil, fmt.Errorf("tons must be positive: %w", domain.ErrValidation)
	}

	var next *domain.NegotiationOffer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.pendingOfferTx(tx, in.ThreadID, in.Actor)
		if err != nil {
			return err
		}

		if err := closePendingTx(tx, pending, domain.OfferCountered); err != nil {
			return err
		}

		price := pending.PricePerTon
		if in.PricePerTon != nil {
			price = *in.PricePerTon
		}
		tons := pending.Tons
		if in.Tons != nil {
			tons = domain.RoundTons(*in.Tons)
		}

		next = &domain.NegotiationOffer{
			ThreadID:      pending.ThreadID,
			ListingID:     pending.ListingID,
			BuyerOrgID:    pending.BuyerOrgID,
			SellerOrgID:   pending.SellerOrgID,
			AuthorOrgID:   in.Actor.OrgID,
			AuthorUserID:  in.Actor.UserID,
			PricePerTon:   price,
			Tons:          tons,
			Note:          in.Note,
			Status:        domain.OfferPending,
			ParentOfferID: &pending.OfferID,
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"price_per_ton": next.PricePerTon,
			"tons":          next.Tons,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectThread,
			SubjectID:    pending.ThreadID,
			EventType:    "COUNTERED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: orgCodePtr(in.Actor),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Reject terminally closes the thread.
func (s *Service) Reject(ctx context.Context, in RespondInput) (*domain.NegotiationOffer, error) {
	var rejected *domain.NegotiationOffer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.pendingOfferTx(tx, in.ThreadID, in.Actor)
		if err != nil {
			return err
		}
		if err := closePendingTx(tx, pending, domain.OfferRejected); err != nil {
			return err
		}
		pending.Status = domain.OfferRejected
		rejected = pending

		eventData, _ := json.Marshal(map[string]interface{}{
			"price_per_ton": pending.PricePerTon,
			"tons":          pending.Tons,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectThread,
			SubjectID:    pending.ThreadID,
			EventType:    "REJECTED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: orgCodePtr(in.Actor),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Accept closes the pending offer as accepted and synchronously creates the
// draft purchase order (reserving the listing) in the same transaction. If
// draft creation fails the acceptance rolls back with it: a thread can never
// end up accepted without a contract.
func (s *Service) Accept(ctx context.Context, in RespondInput, draft contracts.CreateDraftInput) (*domain.NegotiationOffer, *domain.PurchaseOrder, error) {
	if !constants.AllowedRole(constants.AcceptOffer, in.Actor.Role) {
		return nil, nil, fmt.Errorf("role %s lacks contract-signing authority: %w", in.Actor.Role, domain.ErrForbidden)
	}

	var accepted *domain.NegotiationOffer
	var order *domain.PurchaseOrder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.pendingOfferTx(tx, in.ThreadID, in.Actor)
		if err != nil {
			return err
		}
		if err := closePendingTx(tx, pending, domain.OfferAccepted); err != nil {
			return err
		}

		draft.ListingID = pending.ListingID
		draft.BuyerOrgID = pending.BuyerOrgID
		draft.SellerOrgID = pending.SellerOrgID
		draft.PricePerTon = pending.PricePerTon
		draft.Tons = pending.Tons
		draft.SourceOfferID = pending.OfferID
		draft.CreatedByUserID = in.Actor.UserID
		draft.ActorOrgCode = orgCodePtr(in.Actor)

		order, err = s.Contracts.CreateDraftTx(tx, draft)
		if err != nil {
			return err
		}

		if err := tx.Model(&domain.NegotiationOffer{}).
			Where("offer_id = ?", pending.OfferID).
			Update("purchase_order_id", order.OrderID).Error; err != nil {
			return err
		}
		pending.Status = domain.OfferAccepted
		pending.PurchaseOrderID = &order.OrderID
		accepted = pending

		eventData, _ := json.Marshal(map[string]interface{}{
			"order_number":  order.OrderNumber,
			"price_per_ton": pending.PricePerTon,
			"tons":          pending.Tons,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectThread,
			SubjectID:    pending.ThreadID,
			EventType:    "ACCEPTED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: orgCodePtr(in.Actor),
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return accepted, order, nil
}

// ListThreads returns the latest offer of every thread the organization
// participates in.
func (s *Service) ListThreads(ctx context.Context, orgID uuid.UUID) ([]domain.NegotiationOffer, error) {
	if orgID == uuid.Nil {
		return nil, fmt.Errorf("organization is required: %w", domain.ErrValidation)
	}
	var latest []domain.NegotiationOffer
	sub := s.DB.Model(&domain.NegotiationOffer{}).
		Select(`thread_id, MAX("createdAt") AS max_created`).
		Where("buyer_org_id = ? OR seller_org_id = ?", orgID, orgID).
		Group("thread_id")
	err := s.DB.WithContext(ctx).
		Joins(`JOIN (?) latest ON latest.thread_id = "NegotiationOffers".thread_id AND latest.max_created = "NegotiationOffers"."createdAt"`, sub).
		Order(`"NegotiationOffers"."createdAt" DESC`).
		Find(&latest).Error
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// GetThread returns the full offer chain, root first.
func (s *Service) GetThread(ctx context.Context, threadID uuid.UUID) ([]domain.NegotiationOffer, error) {
	var offers []domain.NegotiationOffer
	if err := s.DB.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order(`"createdAt" ASC`).
		Find(&offers).Error; err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return offers, nil
}

// pendingOfferTx loads the single pending offer of a thread and validates the
// turn-taking rule: only the counterparty of the pending offer may act.
func (s *Service) pendingOfferTx(tx *gorm.DB, threadID uuid.UUID, actor directory.Actor) (*domain.NegotiationOffer, error) {
	if actor.OrgID == uuid.Nil {
		return nil, fmt.Errorf("actor has no organization: %w", domain.ErrForbidden)
	}

	var pending domain.NegotiationOffer
	err := tx.Where("thread_id = ? AND status = ?", threadID, domain.OfferPending).First(&pending).Error
	if err == gorm.ErrRecordNotFound {
		// No pending offer: either the thread is closed or it never existed.
		var count int64
		if err := tx.Model(&domain.NegotiationOffer{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrThreadClosed)
	}
	if err != nil {
		return nil, err
	}

	if actor.OrgID != pending.BuyerOrgID && actor.OrgID != pending.SellerOrgID {
		return nil, fmt.Errorf("organization is not a participant of this thread: %w", domain.ErrForbidden)
	}
	if actor.OrgID == pending.AuthorOrgID {
		return nil, fmt.Errorf("your organization authored the pending offer: %w", domain.ErrTurnViolation)
	}
	return &pending, nil
}

// closePendingTx transitions the pending offer with a compare-and-swap on
// its status; a race lost to a concurrent response surfaces as
// ErrThreadClosed.
func closePendingTx(tx *gorm.DB, pending *domain.NegotiationOffer, newStatus string) error {
	res := tx.Model(&domain.NegotiationOffer{}).
		Where("offer_id = ? AND status = ?", pending.OfferID, domain.OfferPending).
		Update("status", newStatus)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("offer already advanced: %w", domain.ErrThreadClosed)
	}
	return nil
}

func orgCodePtr(actor directory.Actor) *string {
	if actor.OrgCode == "" {
		return nil
	}
	code := actor.OrgCode
	return &code
}
