package oidcauth

import (
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
)

// ClaimMappings are jmespath expressions evaluated against the ID token's
// claim document. Deployments whose IdP nests profile data (for example
// `profile.email` or `resource_access.edumanage.disabled`) override the
// defaults.
type ClaimMappings struct {
	ID          string
	Email       string
	DisplayName string
	Disabled    string
}

func (m ClaimMappings) withDefaults() ClaimMappings {
	if m.ID == "" {
		m.ID = "sub"
	}
	if m.Email == "" {
		m.Email = "email"
	}
	if m.DisplayName == "" {
		m.DisplayName = "name"
	}
	if m.Disabled == "" {
		m.Disabled = "disabled"
	}
	return m
}

// extractIdentity maps a raw claim document into an Identity using the
// configured expressions. ID and email are required; the rest are optional.
func extractIdentity(claims map[string]any, m ClaimMappings) (domainauth.Identity, error) {
	id, err := searchString(claims, m.ID)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if id == "" {
		return domainauth.Identity{}, fmt.Errorf("claim %q is empty", m.ID)
	}
	email, err := searchString(claims, m.Email)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if email == "" {
		return domainauth.Identity{}, fmt.Errorf("claim %q is empty", m.Email)
	}
	name, err := searchString(claims, m.DisplayName)
	if err != nil {
		return domainauth.Identity{}, err
	}
	disabled, err := searchBool(claims, m.Disabled)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return domainauth.Identity{
		ID:          id,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		DisplayName: name,
		Disabled:    disabled,
	}, nil
}

func searchString(claims map[string]any, expr string) (string, error) {
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return "", fmt.Errorf("evaluating claim path %q: %w", expr, err)
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("claim path %q yielded %T, want string", expr, v)
	}
	return s, nil
}

func searchBool(claims map[string]any, expr string) (bool, error) {
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return false, fmt.Errorf("evaluating claim path %q: %w", expr, err)
	}
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("claim path %q yielded %T, want bool", expr, v)
	}
	return b, nil
}
