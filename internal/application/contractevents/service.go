package contractevents

import (
	"context"
	"fmt"

	"stackyard-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// GetOrgContractEvents returns the audit trail written by an organization,
// oldest first.
func (s *Service) GetOrgContractEvents(ctx context.Context, orgID uuid.UUID) ([]domain.ContractEvent, error) {
	if orgID == uuid.Nil {
		return nil, fmt.Errorf("organization is required: %w", domain.ErrValidation)
	}

	var org domain.Org
	if err := s.DB.WithContext(ctx).Where("org_id = ?", orgID).Select("org_code").First(&org).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("organization %s: %w", orgID, domain.ErrNotFound)
		}
		return nil, err
	}

	var events []domain.ContractEvent
	if err := s.DB.WithContext(ctx).Where("actor_org_code = ?", org.OrgCode).Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetSubjectEvents returns the audit trail for one aggregate (thread, order,
// delivery load).
func (s *Service) GetSubjectEvents(ctx context.Context, subjectID uuid.UUID) ([]domain.ContractEvent, error) {
	var events []domain.ContractEvent
	if err := s.DB.WithContext(ctx).Where("subject_id = ?", subjectID).Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
