// Package auth turns bearer tokens issued by the login service into
// principals. Tokens are HS256 JWTs carrying the user name, groups and the
// admin flag.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the principal attributes.
type Claims struct {
	jwt.RegisteredClaims
	Name   string   `json:"name"`
	Groups []string `json:"groups,omitempty"`
	Admin  bool     `json:"admin,omitempty"`
}

func GenerateToken(p models.Principal, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Name:   p.Name,
		Groups: p.Groups,
		Admin:  p.Admin,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// PrincipalFromToken validates tokenString and returns its principal.
// Expired tokens return common.ErrTokenExpired, everything else that fails
// validation returns common.ErrInvalidToken.
func PrincipalFromToken(tokenString string, secretKey []byte) (models.Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, common.ErrTokenExpired
		}
		return models.Principal{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.Name == "" {
		return models.Principal{}, common.ErrInvalidToken
	}

	return models.Principal{Name: claims.Name, Groups: claims.Groups, Admin: claims.Admin}, nil
}
