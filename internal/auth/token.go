package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/credential"
)

var (
	ErrInvalidToken  = errors.New("invalid_token")
	ErrNotConfigured = errors.New("auth_not_configured")
)

// Claims is the JWT payload issued by the identity service.
type Claims struct {
	CompanyID int64  `json:"companyId"`
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService verifies and issues HS256 tokens carrying a credential.
type TokenService struct {
	secret      []byte
	defaultRole string
	now         func() time.Time
}

func NewTokenService(cfg config.Config) *TokenService {
	role := strings.ToLower(strings.TrimSpace(cfg.Auth.DefaultRole))
	if role == "" {
		role = "member"
	}
	return &TokenService{
		secret:      []byte(cfg.Auth.JWTSecret),
		defaultRole: role,
		now:         time.Now,
	}
}

// Parse validates token and returns the credential it carries.
func (s *TokenService) Parse(token string) (credential.Credential, error) {
	if len(s.secret) == 0 {
		return credential.Credential{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return credential.Credential{}, ErrInvalidToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return credential.Credential{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return credential.Credential{}, ErrInvalidToken
	}

	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if role == "" {
		role = s.defaultRole
	}
	// system credentials only come from the internal API key
	if role == credential.RoleSystem {
		return credential.Credential{}, ErrInvalidToken
	}

	cred := credential.Credential{
		CompanyID: claims.CompanyID,
		UserID:    claims.UserID,
		UserName:  strings.TrimSpace(claims.Name),
		Role:      role,
	}
	if err := cred.Validate(); err != nil {
		return credential.Credential{}, err
	}
	return cred, nil
}

// Issue signs a token for cred that expires after ttl.
func (s *TokenService) Issue(cred credential.Credential, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNotConfigured
	}
	if err := cred.Validate(); err != nil {
		return "", err
	}
	now := s.now()
	claims := Claims{
		CompanyID: cred.CompanyID,
		UserID:    cred.UserID,
		Name:      cred.UserName,
		Role:      cred.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
