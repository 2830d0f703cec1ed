package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// Auth validates the bearer token and stores the caller's id under "user_id".
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}
		authorization := ctx.Request.Header.Get("Authorization")
		if authorization == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		auth := strings.Split(authorization, "Bearer ")
		if len(auth) != 2 || auth[1] == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		userClaims, token, err := getClaim(auth[1], secretKey)
		if err != nil || token == nil || !token.Valid {
			res.ResponseMessage = abortMessage(err)
			logger.GetLogger().WithField("error", err).Debug("rejected token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		if userClaims.Issuer == "" {
			res.ResponseMessage = "Token carries no subject"
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		ctx.Set("user_id", userClaims.Issuer)
		ctx.Set("role", userClaims.Role)
		ctx.Next()
	}
}

func abortMessage(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			// Token is either expired or not active yet
			return "Timing is everything"
		}
		return fmt.Sprintf("Couldn't handle this token:%v", err)
	}
	return "Unauthorized"
}

func getClaim(raw, secretKey string) (model.UserClaims, *jwt.Token, error) {
	var userClaims model.UserClaims
	token, err := jwt.ParseWithClaims(
		raw,
		&userClaims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
	)
	return userClaims, token, err
}
