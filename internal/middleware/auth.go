package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyboard-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// ErrTokenInvalid covers every token that cannot be trusted.
var ErrTokenInvalid = errors.New("token is invalid")

// Claims are the claims read from an upstream-issued access token. The user id is taken from
// user_id, falling back to the subject.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 access tokens issued by the upstream identity service.
type JWTVerifier struct {
	secret []byte
	logger *zap.Logger
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string, logger *zap.Logger) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return &JWTVerifier{secret: []byte(secret), logger: logger.Named("JWTVerifier")}, nil
}

// Verify validates the token and returns the user it was issued to.
func (v *JWTVerifier) Verify(tokenString string) (models.CurrentUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.CurrentUser{}, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		}
		return models.CurrentUser{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return models.CurrentUser{}, ErrTokenInvalid
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return models.CurrentUser{}, fmt.Errorf("%w: user id missing", ErrTokenInvalid)
	}
	return models.CurrentUser{ID: userID}, nil
}

// CurrentUser rejects requests without a valid token and stores the CurrentUser in both the gin
// context and the request context. Browsers cannot set headers on websocket upgrades, so a token
// query parameter is accepted when the Authorization header is absent.
func CurrentUser(verifier *JWTVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeTokenInvalid,
				Message: "Unauthorized: missing or malformed bearer token",
			})
			return
		}

		user, err := verifier.Verify(tokenString)
		if err != nil {
			verifier.logger.Warn("Token verification failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeTokenInvalid,
				Message: "Unauthorized: invalid or expired token",
			})
			return
		}

		c.Set(userIDKey, user.ID)
		c.Request = c.Request.WithContext(models.WithCurrentUser(c.Request.Context(), user))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := strings.TrimSpace(c.Query("token"))
		return token, token != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserFrom returns the CurrentUser stored by CurrentUser.
func UserFrom(c *gin.Context) models.CurrentUser {
	if u, ok := models.CurrentUserFromContext(c.Request.Context()); ok {
		return u
	}
	return models.CurrentUser{}
}

// UserKey keys rate limits by user, falling back to the client address.
func UserKey(c *gin.Context) string {
	if id := c.GetString(userIDKey); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}
