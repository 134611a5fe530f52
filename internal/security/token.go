package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"socialhub/internal/models"
)

var (
	ErrTokenSigning = errors.New("sign token")
	ErrTokenInvalid = errors.New("invalid token")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthClaims is the wire payload of both token kinds. UserID and Role may be
// zero-valued on a token minted elsewhere; callers decide whether that is fatal.
type AuthClaims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenClaims is the verified view of a token.
type TokenClaims struct {
	UserID    int64
	Role      models.UserRole
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

func (t *TokenIssuer) IssueAccess(p models.Principal) (string, error) {
	return t.issue(p, tokenTypeAccess, t.cfg.AccessSecret, t.cfg.AccessTTL)
}

func (t *TokenIssuer) IssueRefresh(p models.Principal) (string, error) {
	return t.issue(p, tokenTypeRefresh, t.cfg.RefreshSecret, t.cfg.RefreshTTL)
}

func (t *TokenIssuer) VerifyAccess(token string) (TokenClaims, error) {
	return t.verify(token, tokenTypeAccess, t.cfg.AccessSecret)
}

func (t *TokenIssuer) VerifyRefresh(token string) (TokenClaims, error) {
	return t.verify(token, tokenTypeRefresh, t.cfg.RefreshSecret)
}

func (t *TokenIssuer) issue(p models.Principal, tokenType string, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrTokenSigning)
	}

	now := t.now()
	claims := AuthClaims{
		UserID: p.UserID,
		Role:   string(p.Role),
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenSigning, err)
	}
	return signed, nil
}

func (t *TokenIssuer) verify(tokenStr string, tokenType string, secret string) (TokenClaims, error) {
	if tokenStr == "" {
		return TokenClaims{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	if claims.Type != tokenType {
		return TokenClaims{}, fmt.Errorf("%w: expected %s token", ErrTokenInvalid, tokenType)
	}

	result := TokenClaims{
		UserID: claims.UserID,
		Role:   models.UserRole(claims.Role),
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
