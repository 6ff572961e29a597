package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLifetime applies to tokens that carry no exp claim.
const DefaultLifetime = 30 * 24 * time.Hour

var (
	ErrEmptyToken   = errors.New("token is empty")
	ErrTokenExpired = errors.New("stored token has expired")
)

type TokenData struct {
	Token     string `json:"token"`
	Subject   string `json:"subject,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

func (t TokenData) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}

func (t TokenData) Valid(now time.Time) bool {
	return t.Token != "" && now.Before(t.Expiry())
}

// Store keeps the bearer token in <dir>/token.json.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, "token.json")
}

// Inspect reads subject and expiry from a JWT without verifying it. Opaque
// tokens get DefaultLifetime from now.
func Inspect(token string, now time.Time) TokenData {
	data := TokenData{
		Token:     token,
		ExpiresAt: now.Add(DefaultLifetime).Unix(),
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return data
	}
	data.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return data
}

func (s *Store) Save(token string, now time.Time) (*TokenData, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrEmptyToken
	}

	data := Inspect(token, now)
	if !data.Valid(now) {
		return nil, ErrTokenExpired
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token data: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(s.path(), raw, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write token file: %w", err)
	}
	return &data, nil
}

// Load returns nil, nil when no token is stored. An expired token is removed
// and reported as ErrTokenExpired.
func (s *Store) Load(now time.Time) (*TokenData, error) {
	raw, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	if !data.Valid(now) {
		if err := s.Clear(); err != nil {
			return nil, err
		}
		return nil, ErrTokenExpired
	}
	return &data, nil
}

func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
