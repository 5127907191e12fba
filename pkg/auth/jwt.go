// Package auth 提供 UI 桥接的访问令牌校验
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrRoomDenied   = errors.New("room not allowed by token")
)

// Claims 桥接令牌 claims
type Claims struct {
	ClientName string  `json:"client_name,omitempty"`
	Rooms      []int64 `json:"rooms,omitempty"` // 为空表示可订阅所有房间
	jwt.RegisteredClaims
}

// AllowsRoom 令牌是否允许订阅该房间，roomID 为 0 表示订阅全部
func (c *Claims) AllowsRoom(roomID int64) bool {
	if len(c.Rooms) == 0 {
		return true
	}
	if roomID == 0 {
		return false
	}
	for _, r := range c.Rooms {
		if r == roomID {
			return true
		}
	}
	return false
}

// JWTValidator JWT 验证器
type JWTValidator struct {
	secretKey []byte
}

// NewJWTValidator 创建 JWT 验证器
func NewJWTValidator(secretKey string) *JWTValidator {
	return &JWTValidator{
		secretKey: []byte(secretKey),
	}
}

// Validate 验证 JWT token
func (v *JWTValidator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken 签发令牌，rooms 为空表示不限房间
func (v *JWTValidator) GenerateToken(clientName string, rooms []int64, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ClientName: clientName,
		Rooms:      rooms,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}
