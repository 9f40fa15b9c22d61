package middleware

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const holderKey = "holder_id"

// HolderID returns the identity JWTAuth stored on the context, or "" for
// unauthenticated requests.
func HolderID(c echo.Context) string {
	if v, ok := c.Get(holderKey).(string); ok {
		return v
	}
	return ""
}

// SetHolderID stores an identity on the context the way JWTAuth does.
func SetHolderID(c echo.Context, holder string) { c.Set(holderKey, holder) }

// subjectOf reads the sub claim.  Numeric subjects are accepted and
// rendered in decimal.
func subjectOf(claims jwt.MapClaims) string {
	switch v := claims["sub"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
