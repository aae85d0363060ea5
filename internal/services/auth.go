package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"balance-aggregator/internal/models"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// AuthService validates API keys against a static list loaded from configuration
type AuthService struct {
	keys []*models.APIKey
}

// NewAuthService creates an auth service accepting keys. Blank entries are ignored.
func NewAuthService(keys []string) *AuthService {
	s := &AuthService{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s.keys = append(s.keys, &models.APIKey{
			ID:  fmt.Sprintf("key-%d", len(s.keys)+1),
			Key: k,
		})
	}
	return s
}

// Enabled reports whether any key is configured; with none, authentication is off
func (s *AuthService) Enabled() bool {
	return len(s.keys) > 0
}

// ValidateAPIKey returns the matching key. Every configured key is compared in constant time.
func (s *AuthService) ValidateAPIKey(key string) (*models.APIKey, error) {
	var match *models.APIKey
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(key)) == 1 {
			match = k
		}
	}
	if match == nil {
		return nil, ErrInvalidAPIKey
	}
	return match, nil
}
