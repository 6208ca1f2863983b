package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/moroccoguide/platform/pkg/middleware"
)

// Claims is the access token payload issued by the identity provider. The
// profile fields feed the author snapshot stored on reviews.
type Claims struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Country string `json:"country,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 access tokens.
type JWTManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

func NewJWTManager(secret, issuer string, expiry time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), issuer: issuer, expiry: expiry}
}

// GenerateAccessToken signs a token for the given identity.
func (m *JWTManager) GenerateAccessToken(userID, name, avatar, country string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:  userID,
		Name:    name,
		Avatar:  avatar,
		Country: country,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses tokenString and checks signature, expiry and issuer.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid access token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// Validator adapts the manager to middleware.Auth.
func (m *JWTManager) Validator() middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		c, err := m.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:  c.UserID,
			Name:    c.Name,
			Avatar:  c.Avatar,
			Country: c.Country,
		}, nil
	}
}
