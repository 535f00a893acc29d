// Package auth выпускает и проверяет токены операторов симуляции.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли операторов
const (
	RoleViewer   = "viewer"   // Только чтение
	RoleOperator = "operator" // Пауза, продолжение и пошаговый режим
)

const issuer = "rescue-sim"

// MinSecretLen - минимальная длина секрета HS256 в байтах
const MinSecretLen = 32

var (
	ErrInvalidToken = errors.New("недействительный токен")
	ErrShortSecret  = errors.New("секрет должен быть не короче 32 байт")
)

// Claims - полезная нагрузка токена оператора
type Claims struct {
	Operator string `json:"operator"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// CanControl сообщает, может ли владелец токена управлять циклом
func (c *Claims) CanControl() bool {
	return c.Role == RoleOperator
}

// TokenIssuer подписывает и проверяет токены одним HS256-секретом
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer создаёт выпускающего токены. Пустой секрет заменяется случайным:
// такие токены живут только до перезапуска процесса.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, MinSecretLen)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if len(key) < MinSecretLen {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: key, ttl: ttl}, nil
}

// Issue создаёт токен для оператора с указанной ролью
func (ti *TokenIssuer) Issue(operator, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Operator: operator,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Validate проверяет подпись, срок действия и издателя токена
func (ti *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecureSecret генерирует случайный секрет в base64
func GenerateSecureSecret() (string, error) {
	b := make([]byte, MinSecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
