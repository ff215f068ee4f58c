package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SpareLink/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// PrincipalKey is the c.Locals key holding the verified Models.Principal.
const PrincipalKey = "principal"

// Claims is the token issued by the auth service. The subject is the user id.
type Claims struct {
	Name         string              `json:"name"`
	Role         Models.Role         `json:"role"`
	LocationType Models.LocationType `json:"location_type"`
	LocationID   uint                `json:"location_id"`
	jwt.RegisteredClaims
}

func (c Claims) Principal() (Models.Principal, error) {
	userID, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return Models.Principal{}, fmt.Errorf("invalid subject %q", c.Subject)
	}
	p := Models.Principal{
		UserID:   uint(userID),
		Name:     c.Name,
		Role:     c.Role,
		Location: Models.Location{Type: c.LocationType, ID: c.LocationID},
	}
	switch p.Role {
	case Models.RoleTechnician, Models.RoleServiceCenter, Models.RoleRSM, Models.RoleAdmin:
	default:
		return p, fmt.Errorf("unknown role %q", p.Role)
	}
	if p.Role != Models.RoleAdmin && !p.Location.Valid() {
		return p, errors.New("token carries no stock location")
	}
	return p, nil
}

// Auth verifies tokens signed by the auth service. Issuing them is not our
// concern; SignToken exists for tools and tests.
type Auth struct {
	Secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{Secret: []byte(secret)}
}

// Verify rejects requests without a valid token and, when roles are given,
// principals holding none of them.
func (a *Auth) Verify(roles ...Models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Not Logged In.",
			})
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.Secret, nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Invalid or expired token",
			})
		}

		p, err := claims.Principal()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": err.Error(),
			})
		}
		c.Locals(PrincipalKey, p)

		if len(roles) == 0 || p.Role == Models.RoleAdmin {
			return c.Next()
		}
		for _, role := range roles {
			if p.Role == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Insufficient permissions to access this resource",
		})
	}
}

// SignToken issues an HS256 token for p valid for ttl.
func (a *Auth) SignToken(p Models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:         p.Name,
		Role:         p.Role,
		LocationType: p.Location.Type,
		LocationID:   p.Location.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(p.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// CurrentPrincipal returns the principal stored by Verify.
func CurrentPrincipal(c *fiber.Ctx) (Models.Principal, bool) {
	p, ok := c.Locals(PrincipalKey).(Models.Principal)
	return p, ok
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Cookies("jwt")
}
