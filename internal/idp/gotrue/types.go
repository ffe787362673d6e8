package gotrue

import "github.com/dtroode/chronos/internal/model"

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

type identityResponse struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

type userResponse struct {
	ID           string             `json:"id"`
	Email        string             `json:"email"`
	UserMetadata map[string]any     `json:"user_metadata"`
	Identities   []identityResponse `json:"identities"`
}

func (u userResponse) sessionUser() model.SessionUser {
	var identities []model.Identity
	if u.Identities != nil {
		identities = make([]model.Identity, 0, len(u.Identities))
	}
	for _, i := range u.Identities {
		identities = append(identities, model.Identity{ID: i.ID, Provider: i.Provider})
	}
	return model.SessionUser{
		ID:         u.ID,
		Email:      u.Email,
		Metadata:   u.UserMetadata,
		Identities: identities,
	}
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// signUpResponse is either a session or, while confirmation is pending, a
// bare user object.
type signUpResponse struct {
	tokenResponse
	userResponse
}
