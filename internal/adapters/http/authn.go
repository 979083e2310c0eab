package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims identifies an operator (door staff, org admin) calling the
// write endpoints. Issued by the accounts backend; this service only verifies.
type OperatorClaims struct {
	OperatorID string `json:"operator_id"`
	OrgSlug    string `json:"org_slug,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

var errMissingBearer = errors.New("missing bearer token")

// RequireOperator returns middleware that rejects requests without a valid
// HS256 operator token. The parsed claims land in c.Locals("operator").
func RequireOperator(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return errInternal(c, "operator auth not configured")
		}

		raw, err := bearerToken(c)
		if err != nil {
			return errUnauthorized(c, err.Error())
		}

		claims := &OperatorClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return errUnauthorized(c, "invalid token")
		}
		if claims.OperatorID == "" {
			return errUnauthorized(c, "token missing operator_id")
		}

		c.Locals("operator", claims)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", errMissingBearer
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errMissingBearer
	}
	return token, nil
}
