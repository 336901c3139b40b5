package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/model"
)

// 上下文中保存操作员信息的键
const (
	ContextOperatorID = "operator_id"
	ContextUsername   = "username"
	ContextRoleName   = "role_name"
)

// JWTClaims 自定义JWT载荷
type JWTClaims struct {
	jwt.RegisteredClaims
	OperatorID uint   `json:"operator_id"`
	Username   string `json:"username"`
	RoleName   string `json:"role_name"`
}

// GenerateToken 生成JWT Token
func GenerateToken(operator model.Operator, cfg *config.Config) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWTExpireTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    cfg.JWTIssuer,
			Subject:   operator.Username,
		},
		OperatorID: operator.ID,
		Username:   operator.Username,
		RoleName:   operator.Role.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析JWT Token
func ParseToken(tokenString string, cfg *config.Config) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的Token")
}

// tokenFromRequest 依次从 Authorization 头、Cookie、查询参数获取Token
// EventSource 与 WebSocket 无法自定义请求头，只能通过查询参数传递
func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// JWTAuth JWT认证中间件
func JWTAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse(http.StatusUnauthorized, "未授权: 缺少Token"))
			c.Abort()
			return
		}

		claims, err := ParseToken(tokenString, cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse(http.StatusUnauthorized, "未授权: "+err.Error()))
			c.Abort()
			return
		}

		// 将操作员信息保存到上下文中
		c.Set(ContextOperatorID, claims.OperatorID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRoleName, claims.RoleName)

		c.Next()
	}
}

// GetCurrentOperatorID 从上下文中获取当前操作员ID
func GetCurrentOperatorID(c *gin.Context) uint {
	id, _ := c.Get(ContextOperatorID)
	uid, _ := id.(uint)
	return uid
}

// GetCurrentUsername 从上下文中获取当前用户名
func GetCurrentUsername(c *gin.Context) string {
	username, _ := c.Get(ContextUsername)
	name, _ := username.(string)
	return name
}

// GetCurrentRoleName 从上下文中获取当前角色
func GetCurrentRoleName(c *gin.Context) string {
	role, _ := c.Get(ContextRoleName)
	name, _ := role.(string)
	return name
}

// RefreshToken 使用上下文中的操作员信息签发新Token
func RefreshToken(c *gin.Context, cfg *config.Config) (string, error) {
	operator := model.Operator{Username: GetCurrentUsername(c)}
	operator.ID = GetCurrentOperatorID(c)
	operator.Role.Name = GetCurrentRoleName(c)
	return GenerateToken(operator, cfg)
}
