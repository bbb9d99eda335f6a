package deliveries

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"stackyard-backend/internal/domain"
	"stackyard-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is the delivery ledger. It is the only code path that mutates a
// purchase order's delivered_tons accumulator.
type Service struct {
	DB *gorm.DB
}

type LogDeliveryInput struct {
	OrderID          uuid.UUID
	GrossWeightLbs   float64
	TareWeightLbs    float64
	BaleCount        int
	WetBaleCount     int
	Note             *string
	RecordedByUserID uuid.UUID
	DeliveredAt      time.Time
	ActorOrgCode     *string
}

// LogDelivery records a weighed truckload against an active order and
// increments delivered_tons in the same transaction. Concurrent loads both
// land: the increment is an in-database expression, not a read-modify-write.
func (s *Service) LogDelivery(ctx context.Context, in LogDeliveryInput) (*domain.DeliveryLoad, error) {
	if !validation.IsValidWeighIn(in.GrossWeightLbs, in.TareWeightLbs) {
		return nil, fmt.Errorf("gross weight must exceed tare weight: %w", domain.ErrValidation)
	}
	if !validation.IsValidBaleCounts(in.BaleCount, in.WetBaleCount) {
		return nil, fmt.Errorf("bale count must be at least 1 and wet bales within it: %w", domain.ErrValidation)
	}
	if in.DeliveredAt.IsZero() {
		in.DeliveredAt = time.Now().UTC()
	}

	var load *domain.DeliveryLoad
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := activeOrderTx(tx, in.OrderID)
		if err != nil {
			return err
		}

		var allocation domain.ContractAllocation
		if err := tx.Where("order_id = ?", in.OrderID).First(&allocation).Error; err != nil {
			return err
		}

		number, err := nextLoadNumber(tx)
		if err != nil {
			return err
		}

		net := in.GrossWeightLbs - in.TareWeightLbs
		load = &domain.DeliveryLoad{
			LoadNumber:       number,
			OrderID:          order.OrderID,
			ListingID:        allocation.ListingID,
			GrossWeightLbs:   in.GrossWeightLbs,
			TareWeightLbs:    in.TareWeightLbs,
			NetWeightLbs:     net,
			BaleCount:        in.BaleCount,
			WetBaleCount:     in.WetBaleCount,
			Note:             in.Note,
			RecordedByUserID: in.RecordedByUserID,
			DeliveredAt:      in.DeliveredAt,
			Status:           domain.DeliveryConfirmed,
		}
		if err := tx.Create(load).Error; err != nil {
			return err
		}

		derived := load.DerivedTons()
		if err := incrementDeliveredTx(tx, order.OrderID, derived); err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"load_number":  load.LoadNumber,
			"net_lbs":      net,
			"derived_tons": derived,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectDelivery,
			SubjectID:    load.LoadID,
			EventType:    "LOGGED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: in.ActorOrgCode,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return load, nil
}

type ReviseDeliveryInput struct {
	LoadID          uuid.UUID
	GrossWeightLbs  float64
	TareWeightLbs   float64
	BaleCount       int
	WetBaleCount    int
	Note            *string
	RevisedByUserID uuid.UUID
	ActorOrgCode    *string
}

// ReviseDelivery amends a load's weights, counts, or note while the owning
// order is still active. The old tonnage contribution is reversed and the
// new one applied as a single delta; this is the only path allowed to reduce
// delivered_tons. Loads are never deleted.
func (s *Service) ReviseDelivery(ctx context.Context, in ReviseDeliveryInput) (*domain.DeliveryLoad, error) {
	if !validation.IsValidWeighIn(in.GrossWeightLbs, in.TareWeightLbs) {
		return nil, fmt.Errorf("gross weight must exceed tare weight: %w", domain.ErrValidation)
	}
	if !validation.IsValidBaleCounts(in.BaleCount, in.WetBaleCount) {
		return nil, fmt.Errorf("bale count must be at least 1 and wet bales within it: %w", domain.ErrValidation)
	}

	var load domain.DeliveryLoad
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("load_id = ?", in.LoadID).First(&load).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("load %s: %w", in.LoadID, domain.ErrNotFound)
			}
			return err
		}

		if _, err := activeOrderTx(tx, load.OrderID); err != nil {
			return err
		}

		previous := load.DerivedTons()

		load.GrossWeightLbs = in.GrossWeightLbs
		load.TareWeightLbs = in.TareWeightLbs
		load.NetWeightLbs = in.GrossWeightLbs - in.TareWeightLbs
		load.BaleCount = in.BaleCount
		load.WetBaleCount = in.WetBaleCount
		load.Note = in.Note
		revised := load.DerivedTons()

		if err := tx.Model(&domain.DeliveryLoad{}).
			Where("load_id = ?", load.LoadID).
			Updates(map[string]interface{}{
				"gross_weight_lbs": load.GrossWeightLbs,
				"tare_weight_lbs":  load.TareWeightLbs,
				"net_weight_lbs":   load.NetWeightLbs,
				"bale_count":       load.BaleCount,
				"wet_bale_count":   load.WetBaleCount,
				"note":             load.Note,
			}).Error; err != nil {
			return err
		}

		if delta := revised - previous; delta != 0 {
			if err := incrementDeliveredTx(tx, load.OrderID, delta); err != nil {
				return err
			}
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"load_number":   load.LoadNumber,
			"previous_tons": previous,
			"revised_tons":  revised,
		})
		return tx.Create(&domain.ContractEvent{
			SubjectType:  domain.SubjectDelivery,
			SubjectID:    load.LoadID,
			EventType:    "REVISED",
			EventData:    datatypes.JSON(eventData),
			ActorOrgCode: in.ActorOrgCode,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &load, nil
}

// ListDeliveries returns all loads for an order, oldest first.
func (s *Service) ListDeliveries(ctx context.Context, orderID uuid.UUID) ([]domain.DeliveryLoad, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.PurchaseOrder{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	var loads []domain.DeliveryLoad
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("delivered_at ASC").Find(&loads).Error; err != nil {
		return nil, err
	}
	return loads, nil
}

func activeOrderTx(tx *gorm.DB, orderID uuid.UUID) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, err
	}
	if order.Status == domain.OrderCompleted {
		return nil, fmt.Errorf("order %s is completed: %w", order.OrderNumber, domain.ErrOrderClosed)
	}
	if order.Status != domain.OrderActive {
		return nil, fmt.Errorf("order %s is not active yet: %w", order.OrderNumber, domain.ErrValidation)
	}
	return &order, nil
}

func incrementDeliveredTx(tx *gorm.DB, orderID uuid.UUID, delta float64) error {
	return tx.Model(&domain.PurchaseOrder{}).
		Where("order_id = ?", orderID).
		Update("delivered_tons", gorm.Expr("delivered_tons + ?", delta)).Error
}

// nextLoadNumber generates LD-<6 digits>, retrying on collision.
func nextLoadNumber(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		candidate := fmt.Sprintf("LD-%06d", rand.Intn(1000000))
		var count int64
		if err := tx.Model(&domain.DeliveryLoad{}).Where("load_number = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("load number generation exhausted retries: %w", domain.ErrUniqueness)
}
