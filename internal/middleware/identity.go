package middleware

// identity.go holds helpers shared by middleware and handlers for reading
// the authenticated caller from the Echo context.

import "github.com/labstack/echo/v4"

// UserID returns the requester id stored by JWTAuth, or "" when the
// request is unauthenticated.
func UserID(c echo.Context) string {
    if s, ok := c.Get(CtxUserID).(string); ok {
        return s
    }
    return ""
}

// Role returns the role stored by JWTAuth, or "".
func Role(c echo.Context) string {
    if s, ok := c.Get(CtxRole).(string); ok {
        return s
    }
    return ""
}

// userKey identifies the caller for rate limiting; "anon" when unauthenticated.
func userKey(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
