package auth

import (
	"errors"
	"time"

	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims полезная нагрузка JWT: ID и логин пользователя.
// Логин нужен обработчикам заказов, чтобы записать владельца.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Login  string    `json:"login"`
	jwt.RegisteredClaims
}

// ErrInvalidToken возвращается при невалидном или чужом токене.
var ErrInvalidToken = errors.New("invalid token")

// GenerateToken выпускает подписанный HS256-токен для пользователя.
func GenerateToken(user *models.User, secret string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Login:  user.Login,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken проверяет подпись и срок токена и возвращает claims.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		// Принимаем только HMAC: токен с другим методом подписи чужой
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
