package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"stackyard-backend/internal/application/listings"
	"stackyard-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContractSnapshot is what the document-rendering collaborator receives once
// an order completes.
type ContractSnapshot struct {
	Order       domain.PurchaseOrder        `json:"order"`
	Allocations []domain.ContractAllocation `json:"allocations"`
	Signatures  []domain.SignatureEvent     `json:"signatures"`
}

// ContractRenderer turns a completed order snapshot into a human-readable
// artifact. Rendering lives outside this service; failures are logged, never
// propagated into the completion transaction.
type ContractRenderer interface {
	Render(ctx context.Context, snap ContractSnapshot) (artifactURL string, err error)
}

// Service is the contract manager.
type Service struct {
	DB       *gorm.DB
	Renderer ContractRenderer
}

// CreateDraftInput carries the accepted terms into draft creation.
type CreateDraftInput struct {
	ListingID           uuid.UUID
	BuyerOrgID          uuid.UUID
	SellerOrgID         uuid.UUID
	PricePerTon         float64
	Tons                float64
	SourceOfferID       uuid.UUID
	Destination         string
	DeliveryWindowStart *time.Time
	DeliveryWindowEnd   *time.Time
	MaxMoisturePercent  *float64
	QualityNotes        *string
	CreatedByUserID     uuid.UUID
	ActorOrgCode        *string
}

// CreateDraftTx reserves the listing and creates the purchase order plus its
// allocation inside the caller's transaction. A reserve lost to a concurrent
// acceptance comes back as ErrAllocationConflict and rolls the whole
// acceptance back.
func (s *Service) CreateDraftTx(tx *gorm.DB, in CreateDraftInput) (*domain.PurchaseOrder, error) {
	listing, err := listings.ReserveTx(tx, in.ListingID, in.Tons)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("reserve %s: %w", in.ListingID, domain.ErrAllocationConflict)
		}
		return nil, err
	}

	number, err := nextOrderNumber(tx)
	if err != nil {
		return nil, err
	}

	destination := in.Destination
	if destination == "" {
		destination = "TBD"
	}

	order := &domain.PurchaseOrder{
		OrderNumber:         number,
		BuyerOrgID:          in.BuyerOrgID,
		SellerOrgID:         in.SellerOrgID,
		Destination:         destination,
		ContractedTons:      domain.RoundTons(in.Tons),
		PricePerTon:         in.PricePerTon,
		DeliveryWindowStart: in.DeliveryWindowStart,
		DeliveryWindowEnd:   in.DeliveryWindowEnd,
		MaxMoisturePercent:  in.MaxMoisturePercent,
		QualityNotes:        in.QualityNotes,
		Status:              domain.OrderDraft,
		SourceOfferID:       &in.SourceOfferID,
		CreatedByUserID:     in.CreatedByUserID,
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, err
	}

	allocation := &domain.ContractAllocation{
		OrderID:       order.OrderID,
		ListingID:     listing.ListingID,
		AllocatedTons: order.ContractedTons,
	}
	if err := tx.Create(allocation).Error; err != nil {
		return nil, err
	}

	eventData, _ := json.Marshal(map[string]interface{}{
		"order_number":    order.OrderNumber,
		"stack_id":        listing.StackID,
		"contracted_tons": order.ContractedTons,
		"price_per_ton":   order.PricePerTon,
	})
	if err := tx.Create(&domain.ContractEvent{
		SubjectType:  domain.SubjectOrder,
		SubjectID:    order.OrderID,
		EventType:    "DRAFT_CREATED",
		EventData:    datatypes.JSON(eventData),
		ActorOrgCode: in.ActorOrgCode,
	}).Error; err != nil {
		return nil, err
	}

	return order, nil
}

// SignInput carries one party's signing action.
type SignInput struct {
	OrderID        uuid.UUID
	Side           string
	SignerUserID   uuid.UUID
	SignerOrgID    uuid.UUID
	TypedName      string
	SignatureImage *string
	ActorOrgCode   *string
}

// Sign appends a SignatureEvent for one side. The side's signer columns are
// written with a compare-and-swap so a duplicate signing attempt loses with
// ErrAlreadySigned; whichever side's guarded status flip commits second marks
// both_signed and activates the order.
func (s *Service) Sign(ctx context.Context, in SignInput) (*domain.SignatureEvent, error) {
	if in.Side != domain.SideBuyer && in.Side != domain.SideSeller {
		return nil, fmt.Errorf("side must be buyer or seller: %w", domain.ErrValidation)
	}
	if in.TypedName == "" {
		return nil, fmt.Errorf("typed legal name is required: %w", domain.ErrValidation)
	}

	var sig *domain.SignatureEvent
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order domain.PurchaseOrder
		if err := tx.Where("order_id = ?", in.OrderID).First(&order).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("order %s: %w", in.OrderID, domain.ErrNotFound)
			}
			return err
		}
		if order.Status == domain.OrderCompleted {
			return fmt.Errorf("order %s is completed: %w", order.OrderNumber, domain.ErrOrderClosed)
		}

		sideOrg := order.BuyerOrgID
		signedCol := "buyer_signed_by"
		nameCol := "buyer_signed_name"
		if in.Side == domain.SideSeller {
			sideOrg = order.SellerOrgID
			signedCol = "seller_signed_by"
			nameCol = "seller_signed_name"
		}
		if in.SignerOrgID != sideOrg {
			return fmt.Errorf("signer organization does not match the %s side: %w", in.Side, domain.ErrForbidden)
		}

		res := tx.Model(&domain.PurchaseOrder{}).
			Where(fmt.Sprintf("order_id = ? AND %s IS NULL", signedCol), in.OrderID).
			Updates(map[string]interface{}{
				signedCol: in.SignerUserID,
				nameCol:   in.TypedName,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s side of %s: %w", in.Side, order.OrderNumber, domain.ErrAlreadySigned)
		}

		now := time.Now().UTC()

		// Activate only when both signer columns are set; the guard on the
		// current draft status keeps the flip to exactly one winner.
		res = tx.Model(&domain.PurchaseOrder{}).
			Where("order_id = ? AND status = ? AND buyer_signed_by IS NOT NULL AND seller_signed_by IS NOT NULL",
				in.OrderID, domain.OrderDraft).
			Updates(map[string]interface{}{
				"status":    domain.OrderActive,
				"signed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		bothSigned := res.RowsAffected == 1

		sig = &domain.SignatureEvent{
			OrderID:        in.OrderID,
			SignerUserID:   in.SignerUserID,
			SignerOrgID:    in.SignerOrgID,
			TypedName:      in.TypedName,
			SignatureImage: in.SignatureImage,
			Side:           in.Side,
			BothSigned:     bothSigned,
			SignedAt:       now,
		}
		if err := tx.Create(sig).Error; err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"order_number": order.OrderNumber,
			"side":         in.Side,
			"typed_name":   in.TypedName,
			"both_signed":  bothSigned,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectOrder,
			SubjectID:    in.OrderID,
			EventType:    "SIGNED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: in.ActorOrgCode,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// Complete closes an active order. Delivery writes against it are rejected
// afterwards. Rendering of the final document happens outside the
// transaction so a renderer outage cannot block completion.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID, actorOrgCode *string) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
			}
			return err
		}
		if order.Status == domain.OrderCompleted {
			return fmt.Errorf("order %s already completed: %w", order.OrderNumber, domain.ErrOrderClosed)
		}
		if order.Status != domain.OrderActive {
			return fmt.Errorf("order %s is not active: %w", order.OrderNumber, domain.ErrValidation)
		}

		now := time.Now().UTC()
		res := tx.Model(&domain.PurchaseOrder{}).
			Where("order_id = ? AND status = ?", orderID, domain.OrderActive).
			Updates(map[string]interface{}{
				"status":       domain.OrderCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %s: %w", order.OrderNumber, domain.ErrConflict)
		}
		order.Status = domain.OrderCompleted
		order.CompletedAt = &now

		// Allocated listings leave the market for good once the order settles.
		if err := tx.Model(&domain.Listing{}).
			Where("listing_id IN (?) AND status = ?",
				tx.Model(&domain.ContractAllocation{}).Select("listing_id").Where("order_id = ?", orderID),
				domain.ListingReserved,
			).
			Update("status", domain.ListingClosed).Error; err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"order_number":    order.OrderNumber,
			"delivered_tons":  order.DeliveredTons,
			"contracted_tons": order.ContractedTons,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectOrder,
			SubjectID:    orderID,
			EventType:    "COMPLETED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: actorOrgCode,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if s.Renderer != nil {
		snap, snapErr := s.GetContract(ctx, orderID)
		if snapErr == nil {
			if _, renderErr := s.Renderer.Render(ctx, *snap); renderErr != nil {
				log.Warn().Str("order_number", order.OrderNumber).Err(renderErr).Msg("contract render failed")
			}
		}
	}

	return &order, nil
}

// GetContract returns the order with its allocations and signature history.
func (s *Service) GetContract(ctx context.Context, orderID uuid.UUID) (*ContractSnapshot, error) {
	var order domain.PurchaseOrder
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, err
	}
	var allocations []domain.ContractAllocation
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Find(&allocations).Error; err != nil {
		return nil, err
	}
	var signatures []domain.SignatureEvent
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("signed_at ASC").Find(&signatures).Error; err != nil {
		return nil, err
	}
	return &ContractSnapshot{Order: order, Allocations: allocations, Signatures: signatures}, nil
}

// ListFilters narrows the contract lists.
type ListFilters struct {
	Side       string // "buyer", "seller", or "" for both
	WindowFrom *time.Time
	WindowTo   *time.Time
}

func (s *Service) ListActiveContracts(ctx context.Context, orgID uuid.UUID, f ListFilters) ([]domain.PurchaseOrder, error) {
	return s.listByStatus(ctx, orgID, f, []string{domain.OrderDraft, domain.OrderActive})
}

func (s *Service) ListCompletedContracts(ctx context.Context, orgID uuid.UUID, f ListFilters) ([]domain.PurchaseOrder, error) {
	return s.listByStatus(ctx, orgID, f, []string{domain.OrderCompleted})
}

func (s *Service) listByStatus(ctx context.Context, orgID uuid.UUID, f ListFilters, statuses []string) ([]domain.PurchaseOrder, error) {
	if orgID == uuid.Nil {
		return nil, fmt.Errorf("organization is required: %w", domain.ErrValidation)
	}
	q := s.DB.WithContext(ctx).Where("status IN ?", statuses)
	switch f.Side {
	case domain.SideBuyer:
		q = q.Where("buyer_org_id = ?", orgID)
	case domain.SideSeller:
		q = q.Where("seller_org_id = ?", orgID)
	default:
		q = q.Where("buyer_org_id = ? OR seller_org_id = ?", orgID, orgID)
	}
	if f.WindowFrom != nil {
		q = q.Where("delivery_window_end IS NULL OR delivery_window_end >= ?", *f.WindowFrom)
	}
	if f.WindowTo != nil {
		q = q.Where("delivery_window_start IS NULL OR delivery_window_start <= ?", *f.WindowTo)
	}
	var orders []domain.PurchaseOrder
	if err := q.Order(`"createdAt" DESC`).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// nextOrderNumber generates PO-<year>-<6 digits>, retrying on collision
// instead of surfacing a uniqueness failure to the caller.
func nextOrderNumber(tx *gorm.DB) (string, error) {
	year := time.Now().UTC().Year()
	for attempt := 0; attempt < 5; attempt++ {
		candidate := fmt.Sprintf("PO-%d-%06d", year, rand.Intn(1000000))
		var count int64
		if err := tx.Model(&domain.PurchaseOrder{}).Where("order_number = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("order number generation exhausted retries: %w", domain.ErrUniqueness)
}
