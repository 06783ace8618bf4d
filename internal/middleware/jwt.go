package middleware // middleware provides shared request processing for handlers

import (
    "fmt"
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Context keys populated by JWTAuth.
const (
    CtxUserID = "user_id"
    CtxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates an HS256 Bearer access
// token and stores its subject and role claims in the request context
// under CtxUserID and CtxRole, both as strings.  The subject becomes the
// requester id of every booking made with the token.  Expired tokens are
// rejected by the parser.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            sub := claimString(claims["sub"])
            if sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no subject"})
            }
            c.Set(CtxUserID, sub)
            c.Set(CtxRole, claimString(claims["role"]))
            return next(c)
        }
    }
}

// claimString renders string and numeric claims; JSON numbers decode as float64.
func claimString(v any) string {
    switch t := v.(type) {
    case string:
        return t
    case float64:
        return fmt.Sprintf("%.0f", t)
    default:
        return ""
    }
}
