package utils

import (
	"time"

	"crosspost/domain/model"

	"github.com/golang-jwt/jwt"
)

// IssueToken signs an HS256 bearer token whose issuer is userID, the shape the
// Auth middleware accepts. A zero ttl leaves the token without expiry; a
// negative one yields an already expired token.
func IssueToken(userID, userName string, ttl time.Duration, secretKey string) (string, error) {
	claims := model.UserClaims{
		StandardClaims: jwt.StandardClaims{Issuer: userID, IssuedAt: time.Now().Unix()},
		UserName:       userName,
	}
	if ttl != 0 {
		claims.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}
