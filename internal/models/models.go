// package models defines the data model for the now-playing proxy
package models

import (
	"errors"
	"time"
)

// ErrInvalidModel is returned by Validate implementations.
var ErrInvalidModel = errors.New("invalid model")

// TokenPair is the result of an authorization-code exchange or a refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"` // seconds from IssuedAt
	IssuedAt     time.Time `json:"-"`
}

// Expiry returns the absolute expiry of the access token.
func (t TokenPair) Expiry() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Validate checks that the pair carries an access token and a non-negative lifetime.
func (t TokenPair) Validate() error {
	if t.AccessToken == "" {
		return errors.Join(ErrInvalidModel, errors.New("access token is empty"))
	}
	if t.ExpiresIn < 0 {
		return errors.Join(ErrInvalidModel, errors.New("expires_in is negative"))
	}
	return nil
}

// OAuthState is a login nonce bound to one authorization round-trip.
type OAuthState struct {
	ID        string
	Nonce     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the nonce can no longer be consumed at now.
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *OAuthState) Validate() error {
	if s.Nonce == "" {
		return errors.Join(ErrInvalidModel, errors.New("nonce is empty"))
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return errors.Join(ErrInvalidModel, errors.New("state expires before it is created"))
	}
	return nil
}
