package usecase

import (
	"crypto/subtle"
	"strings"

	"postcontest/src/core/domain"
)

// AdminAuthService checks the shared admin token guarding administrative
// operations.
type AdminAuthService struct {
	adminToken string
}

func NewAdminAuthService(adminToken string) *AdminAuthService {
	return &AdminAuthService{adminToken: strings.TrimSpace(adminToken)}
}

// Enabled reports whether an admin token is configured.
func (s *AdminAuthService) Enabled() bool {
	return s.adminToken != ""
}

// Authorize accepts token when it matches the configured admin token.
func (s *AdminAuthService) Authorize(token string) error {
	if !s.Enabled() {
		return domain.NewUnauthorizedError("admin token not configured")
	}
	if token == "" {
		return domain.NewUnauthorizedError("missing admin token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		return domain.NewUnauthorizedError("invalid admin token")
	}
	return nil
}
