package helpers

import "github.com/golang-jwt/jwt/v5"

// RoleServiceRole is the Supabase role carried by server-to-server tokens.
const RoleServiceRole = "service_role"

type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	AppMetadata struct {
		Provider string   `json:"provider,omitempty"`
		Roles    []string `json:"roles,omitempty"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

func (c *CustomClaims) HasRole(role string) bool {
	if c.Role == role {
		return true
	}
	for _, r := range c.AppMetadata.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsServiceRole reports whether the token may trigger privileged jobs.
func (c *CustomClaims) IsServiceRole() bool {
	return c.HasRole(RoleServiceRole)
}
