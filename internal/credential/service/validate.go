package service

import (
	"fmt"
	"time"

	"shelteraccess/internal/credential/models"
)

// validate runs the policy checks in a fixed order and stops at the first
// violation, so a denial always names exactly one reason. Determinism here
// matters for audit clarity: the same bad request is always denied the same
// way.
func (s *Service) validate(req models.Request, now time.Time) (models.Validated, *models.ValidationError) {
	if len(req.Justification) < models.MinJustificationLength {
		return models.Validated{}, &models.ValidationError{
			Reason: models.DenialJustificationTooShort,
			Message: fmt.Sprintf("justification must be at least %d characters",
				models.MinJustificationLength),
		}
	}

	if !s.policy.Eligible(req.Role, req.RequestedLevel) {
		return models.Validated{}, &models.ValidationError{
			Reason: models.DenialRoleNotEligible,
			Message: fmt.Sprintf("role %s may not request %s access",
				req.Role, req.RequestedLevel),
		}
	}

	if req.ValidityDays < models.MinValidityDays || req.ValidityDays > models.MaxValidityDays {
		return models.Validated{}, &models.ValidationError{
			Reason: models.DenialInvalidValidityPeriod,
			Message: fmt.Sprintf("validity period must be between %d and %d days",
				models.MinValidityDays, models.MaxValidityDays),
		}
	}

	rule := s.policy.Rule(req.RequestedLevel)

	if rule.RequiresSupervisor && req.SupervisorApproval == "" {
		return models.Validated{}, &models.ValidationError{
			Reason: models.DenialSupervisorApproval,
			Message: fmt.Sprintf("%s access requires a supervisor co-signature",
				req.RequestedLevel),
		}
	}

	if rule.RequiresMFA && !req.MFAVerified {
		return models.Validated{}, &models.ValidationError{
			Reason: models.DenialMFARequired,
			Message: fmt.Sprintf("%s access requires a completed MFA step",
				req.RequestedLevel),
		}
	}

	return models.Validated{Request: req, ValidatedAt: now}, nil
}
