package services

import (
	"context"
	"fmt"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
)

// scopeFor returns the session's tenant scope when its role is one of allowed
func scopeFor(sess domain.Session, allowed ...domain.Role) (domain.Scope, error) {
	scope, err := sess.Scope()
	if err != nil {
		return domain.Scope{}, err
	}
	for _, r := range allowed {
		if sess.Role == r {
			return scope, nil
		}
	}
	return domain.Scope{}, fmt.Errorf("%w: role %q", domain.ErrForbidden, sess.Role)
}

// activeResident scopes a resident session and fails with ErrResidentInactive
// once the resident has been offboarded
func activeResident(ctx context.Context, residents repositories.ResidentRepository, sess domain.Session) (domain.Scope, error) {
	scope, err := scopeFor(sess, domain.RoleResident)
	if err != nil {
		return domain.Scope{}, err
	}
	resident, err := residents.Get(ctx, scope, sess.ResidentID)
	if err != nil {
		return domain.Scope{}, err
	}
	if resident.Status != domain.ResidentActive {
		return domain.Scope{}, domain.ErrResidentInactive
	}
	return scope, nil
}

// wardFor returns the resident a session may read data of.
// Residents and guardians are pinned to their own ward; admins name any resident of the hostel.
func wardFor(ctx context.Context, residents repositories.ResidentRepository, sess domain.Session, requested string) (domain.Scope, string, error) {
	scope, err := sess.Scope()
	if err != nil {
		return domain.Scope{}, "", err
	}

	switch sess.Role {
	case domain.RoleResident:
		if requested != "" && requested != sess.ResidentID {
			return domain.Scope{}, "", domain.ErrForbidden
		}
		return scope, sess.ResidentID, nil
	case domain.RoleGuardian:
		if requested != "" && requested != sess.LinkedResidentID {
			return domain.Scope{}, "", domain.ErrGuardianNotLinked
		}
		return scope, sess.LinkedResidentID, nil
	case domain.RoleAdmin:
		if requested == "" {
			return domain.Scope{}, "", fmt.Errorf("%w: resident_id is required", domain.ErrInvalidInput)
		}
		if _, err := residents.Get(ctx, scope, requested); err != nil {
			return domain.Scope{}, "", err
		}
		return scope, requested, nil
	default:
		return domain.Scope{}, "", fmt.Errorf("%w: %q", domain.ErrUnknownRole, sess.Role)
	}
}

func pushTokens(users []*models.User) []string {
	tokens := make([]string, 0, len(users))
	for _, u := range users {
		if u.PushToken != "" {
			tokens = append(tokens, u.PushToken)
		}
	}
	return tokens
}
