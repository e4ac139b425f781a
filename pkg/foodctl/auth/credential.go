package auth

import "errors"

// Storage keys shared by every backend.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUsername     = "username"
)

var ErrPartialCredential = errors.New("access token and refresh token must both be set")

// Credential is the current session's token pair plus the identity label
// returned at login.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username,omitempty"`
}

// Valid reports whether both tokens are present. A credential with only one
// of them is treated as absent.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

func (c Credential) fields() map[string]string {
	m := map[string]string{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
	}
	if c.Username != "" {
		m[KeyUsername] = c.Username
	}
	return m
}

func credentialFromFields(m map[string]string) (Credential, bool) {
	c := Credential{
		AccessToken:  m[KeyAccessToken],
		RefreshToken: m[KeyRefreshToken],
		Username:     m[KeyUsername],
	}
	if !c.Valid() {
		return Credential{}, false
	}
	return c, true
}
