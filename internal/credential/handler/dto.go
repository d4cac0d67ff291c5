package handler

import (
	"time"

	"shelteraccess/internal/access"
	"shelteraccess/internal/credential/models"
)

// credentialRequest is the wire form of a credential application.
type credentialRequest struct {
	UserID             string   `json:"userId"`
	Role               string   `json:"role"`
	RequestedLevel     string   `json:"requestedAccessLevel"`
	Permissions        []string `json:"requestedPermissions,omitempty"`
	Justification      string   `json:"justification"`
	ValidityDays       int      `json:"validityPeriodDays"`
	MFAVerified        bool     `json:"mfaVerified"`
	SupervisorApproval string   `json:"supervisorApproval,omitempty"`
}

// toDomain converts the wire request. The role passes through unparsed so an
// unknown role is denied by policy rather than rejected as malformed; an
// unknown level name has no policy meaning and is a bad request.
func (r credentialRequest) toDomain() (models.Request, error) {
	level, err := access.ParseLevel(r.RequestedLevel)
	if err != nil {
		return models.Request{}, err
	}
	return models.Request{
		UserID:             r.UserID,
		Role:               access.Role(r.Role),
		RequestedLevel:     level,
		Permissions:        r.Permissions,
		Justification:      r.Justification,
		ValidityDays:       r.ValidityDays,
		MFAVerified:        r.MFAVerified,
		SupervisorApproval: r.SupervisorApproval,
	}, nil
}

type grantResponse struct {
	CredentialID string    `json:"credentialId"`
	SessionToken string    `json:"sessionToken"`
	AccessLevel  string    `json:"accessLevel"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type denialResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

type statusResponse struct {
	HasAccess   bool       `json:"hasAccess"`
	AccessLevel string     `json:"accessLevel,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	MFAVerified bool       `json:"mfaVerified,omitempty"`
}

func statusFromDomain(st models.Status) statusResponse {
	if !st.HasAccess {
		return statusResponse{}
	}
	expiresAt := st.ExpiresAt
	return statusResponse{
		HasAccess:   true,
		AccessLevel: st.Level.String(),
		ExpiresAt:   &expiresAt,
		MFAVerified: st.MFAVerified,
	}
}

type fieldsResponse struct {
	ClientID string            `json:"clientId"`
	Fields   map[string]string `json:"fields"`
}

// accessDenialResponse explains a refused field read. Field and level details
// are present only when a specific field triggered the refusal.
type accessDenialResponse struct {
	ErrorKind     string `json:"errorKind"`
	Field         string `json:"field,omitempty"`
	RequiredLevel string `json:"requiredLevel,omitempty"`
	HeldLevel     string `json:"heldLevel,omitempty"`
}
