package model

import "github.com/golang-jwt/jwt"

// UserClaims is the JWT payload issued by the identity service. The subject
// (Issuer) carries the user id posts are owned by.
type UserClaims struct {
	jwt.StandardClaims
	UserName string `json:"user_name,omitempty"`
	Role     string `json:"role,omitempty"`
}
