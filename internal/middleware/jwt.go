package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by the JWT middleware.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// parseBearer validates the Authorization header and returns the token
// claims.  It returns errMissingToken when no bearer token is present.
func parseBearer(c echo.Context, secret string) (jwt.MapClaims, error) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, errMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	return claims, nil
}

func setIdentity(c echo.Context, claims jwt.MapClaims) {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		c.Set(ctxUserID, sub)
	}
	if role, ok := claims["role"].(string); ok {
		c.Set(ctxRole, role)
	}
}

func unauthorized(c echo.Context, err error) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"message": err.Error(),
		"code":    "UNAUTHORIZED",
	})
}

// JWTAuth requires a valid HS256 bearer token and stores its subject and
// role in the context under "user_id" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := parseBearer(c, secret)
			if err != nil {
				return unauthorized(c, err)
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}

// OptionalJWT records the caller's identity when a valid token is sent
// and lets anonymous requests through.  A token that is present but
// invalid is still rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := parseBearer(c, secret)
			switch {
			case errors.Is(err, errMissingToken):
			case err != nil:
				return unauthorized(c, err)
			default:
				setIdentity(c, claims)
			}
			return next(c)
		}
	}
}
