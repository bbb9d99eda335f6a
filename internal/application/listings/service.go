package listings

import (
	"context"
	"fmt"

	"stackyard-backend/internal/domain"
	"stackyard-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the listing registry. Status leaves "available" only through
// ReserveTx, called by the contract manager at acceptance.
type Service struct {
	DB *gorm.DB
}

type CreateListingInput struct {
	StackID           string
	SellerOrgID       uuid.UUID
	Product           string
	Cutting           *string
	BaleType          *string
	AskingPricePerTon float64
	EstimatedTons     float64
	MoisturePercent   *float64
	PriceFirm         bool
}

func (s *Service) CreateListing(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	if in.StackID == "" || in.Product == "" {
		return nil, fmt.Errorf("stack_id and product are required: %w", domain.ErrValidation)
	}
	if in.SellerOrgID == uuid.Nil {
		return nil, fmt.Errorf("seller organization is required: %w", domain.ErrValidation)
	}
	if !validation.IsPositiveMoney(in.AskingPricePerTon) || !validation.IsPositiveMoney(in.EstimatedTons) {
		return nil, fmt.Errorf("asking price and estimated tons must be positive: %w", domain.ErrValidation)
	}
	if in.MoisturePercent != nil && !validation.IsValidMoisture(*in.MoisturePercent) {
		return nil, fmt.Errorf("moisture percent out of range: %w", domain.ErrValidation)
	}

	listing := &domain.Listing{
		StackID:           in.StackID,
		SellerOrgID:       in.SellerOrgID,
		Product:           in.Product,
		Cutting:           in.Cutting,
		BaleType:          in.BaleType,
		AskingPricePerTon: in.AskingPricePerTon,
		EstimatedTons:     domain.RoundTons(in.EstimatedTons),
		MoisturePercent:   in.MoisturePercent,
		PriceFirm:         in.PriceFirm,
		Status:            domain.ListingAvailable,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Listing{}).Where("stack_id = ?", in.StackID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("stack_id %s: %w", in.StackID, domain.ErrUniqueness)
		}
		return tx.Create(listing).Error
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) GetListingByStackID(ctx context.Context, stackID string) (*domain.Listing, error) {
	if stackID == "" {
		return nil, fmt.Errorf("stack_id is required: %w", domain.ErrValidation)
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("stack_id = ?", stackID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("listing %s: %w", stackID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &listing, nil
}

func (s *Service) GetOrgListings(ctx context.Context, orgID uuid.UUID) ([]domain.Listing, error) {
	if orgID == uuid.Nil {
		return nil, fmt.Errorf("organization is required: %w", domain.ErrValidation)
	}
	var listings []domain.Listing
	if err := s.DB.WithContext(ctx).Where("seller_org_id = ?", orgID).Order(`"createdAt" DESC`).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *Service) GetAvailableListings(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := s.DB.WithContext(ctx).Where("status = ?", domain.ListingAvailable).Order(`"createdAt" DESC`).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// ReserveTx flips an available listing to reserved as part of the caller's
// transaction. The status write is a compare-and-swap: a concurrent
// acceptance racing on the same listing leaves RowsAffected == 0 for the
// loser, surfaced as ErrConflict.
func ReserveTx(tx *gorm.DB, listingID uuid.UUID, requestedTons float64) (*domain.Listing, error) {
	var listing domain.Listing
	if err := tx.Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("listing %s: %w", listingID, domain.ErrNotFound)
		}
		return nil, err
	}
	if requestedTons <= 0 {
		return nil, fmt.Errorf("requested tons must be positive: %w", domain.ErrValidation)
	}
	if requestedTons > listing.EstimatedTons {
		return nil, fmt.Errorf("requested %v tons exceeds estimated %v: %w", requestedTons, listing.EstimatedTons, domain.ErrValidation)
	}

	res := tx.Model(&domain.Listing{}).
		Where("listing_id = ? AND status = ?", listingID, domain.ListingAvailable).
		Update("status", domain.ListingReserved)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("listing %s already reserved: %w", listing.StackID, domain.ErrConflict)
	}
	listing.Status = domain.ListingReserved
	return &listing, nil
}
