package users

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/livedoc-hq/livedoc/backend/internal/auth"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for profile resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service maintains the stored profile for each authenticated user.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// ResolveProfile upserts the profile carried by the session claims and returns
// the stored identity. The result supplies the display identity that the
// collaboration layer announces into presence.
func (s *Service) ResolveProfile(claims auth.SessionClaims) (Identity, error) {
	userID := normalize(claims.UserID)
	if userID == "" {
		return Identity{}, ErrInvalidIdentity
	}

	if cached, ok := s.cache.Load(userID); ok {
		if identity, ok := cached.(Identity); ok && profileMatches(identity, claims) {
			return identity, nil
		}
	}

	var identity Identity
	err := s.db.Where("user_id = ?", userID).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			UserID:      userID,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			AvatarURL:   normalize(claims.UserAvatarURL),
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return Identity{}, err
		}
	} else if err != nil {
		return Identity{}, err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
			identity.Email = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
			identity.DisplayName = display
		}
		if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != identity.AvatarURL {
			updates["user_avatar_url"] = avatar
			identity.AvatarURL = avatar
		}
		updates["last_seen_at"] = s.now()
		if len(updates) > 0 {
			_ = s.db.Model(&Identity{}).
				Where("user_id = ?", userID).
				Updates(updates).
				Error
		}
	}

	s.cache.Store(userID, identity)
	return identity, nil
}

func profileMatches(identity Identity, claims auth.SessionClaims) bool {
	if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
		return false
	}
	if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
		return false
	}
	if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != identity.AvatarURL {
		return false
	}
	return true
}
