package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stackyard-backend/internal/constants"
	"stackyard-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const cachePrefix = "directory:user:"

// Actor is a resolved identity snapshot: who is acting, for which
// organization, with which role. Resolved once per request.
type Actor struct {
	UserID   uuid.UUID `json:"user_id"`
	OrgID    uuid.UUID `json:"org_id"`
	OrgCode  string    `json:"org_code"`
	Role     string    `json:"role"`
	Fullname string    `json:"fullname"`
}

// CanSign reports contract-signing authority (accept offers, sign contracts).
func (a Actor) CanSign() bool {
	return constants.AllowedRole(constants.SignContract, a.Role)
}

// CanAct reports negotiation authority (propose/counter/reject).
func (a Actor) CanAct() bool {
	return constants.AllowedRole(constants.NegotiateOffer, a.Role)
}

// CanRecordDelivery reports delivery-logging authority.
func (a Actor) CanRecordDelivery() bool {
	return constants.AllowedRole(constants.RecordDelivery, a.Role)
}

// Service resolves user IDs against the Users/Orgs directory with a
// Redis-cached snapshot. Rdb may be nil (tests); every lookup then hits the DB.
type Service struct {
	DB       *gorm.DB
	Rdb      *redis.Client
	CacheTTL time.Duration
}

func (s *Service) ttl() time.Duration {
	if s.CacheTTL <= 0 {
		return 10 * time.Minute
	}
	return s.CacheTTL
}

// Resolve returns the actor snapshot for a user ID.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (*Actor, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrValidation)
	}

	if s.Rdb != nil {
		if b, err := s.Rdb.Get(ctx, cachePrefix+userID.String()).Bytes(); err == nil {
			var cached Actor
			if json.Unmarshal(b, &cached) == nil {
				return &cached, nil
			}
		}
	}

	var user domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, err
	}

	actor := &Actor{
		UserID:   user.UserID,
		Role:     user.Role,
		Fullname: user.Fullname,
	}
	if user.OrgID != nil {
		var org domain.Org
		if err := s.DB.WithContext(ctx).Where("org_id = ?", *user.OrgID).First(&org).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return nil, err
			}
		} else {
			actor.OrgID = org.OrgID
			actor.OrgCode = org.OrgCode
		}
	}

	if s.Rdb != nil {
		if b, err := json.Marshal(actor); err == nil {
			_ = s.Rdb.Set(ctx, cachePrefix+userID.String(), b, s.ttl()).Err()
		}
	}
	return actor, nil
}

// Invalidate drops a cached snapshot (role/org changes land upstream).
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.Rdb != nil {
		_ = s.Rdb.Del(ctx, cachePrefix+userID.String()).Err()
	}
}
