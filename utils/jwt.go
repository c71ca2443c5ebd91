package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"renolink/config"
	"renolink/models"
)

// Claims are what the access layer puts into the tokens it issues. The
// engine never issues tokens itself; it only reads the supplier scoping the
// access layer already authorized.
type Claims struct {
	UserID     string `json:"user_id"`
	SupplierID string `json:"supplier_id"`
	jwt.RegisteredClaims
}

func ParseActorToken(tokenString string) (*models.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" || claims.SupplierID == "" {
		return nil, errors.New("token missing actor claims")
	}

	return &models.Actor{
		UserID:     claims.UserID,
		SupplierID: claims.SupplierID,
	}, nil
}
