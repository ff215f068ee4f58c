package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SpareLink/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func newTestApp(auth *Auth, roles ...Models.Role) *fiber.App {
	app := fiber.New()
	app.Get("/me", auth.Verify(roles...), func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(p)
	})
	return app
}

func TestVerify(t *testing.T) {
	auth := NewAuth("secret")
	tech := Models.Principal{
		UserID:   42,
		Name:     "tech",
		Role:     Models.RoleTechnician,
		Location: Models.Location{Type: Models.LocationTechnician, ID: 7},
	}
	admin := Models.Principal{UserID: 1, Name: "root", Role: Models.RoleAdmin}

	valid, err := auth.SignToken(tech, time.Hour)
	if err != nil {
		t.Fatalf("SignToken failed: %v", err)
	}
	expired, _ := auth.SignToken(tech, -time.Minute)
	foreign, _ := NewAuth("other").SignToken(tech, time.Hour)
	adminToken, _ := auth.SignToken(admin, time.Hour)
	noLocation, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             Models.RoleTechnician,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "5"},
	}).SignedString(auth.Secret)

	tests := []struct {
		name   string
		roles  []Models.Role
		header string
		cookie string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "valid bearer", header: "Bearer " + valid, status: http.StatusOK},
		{name: "valid cookie", cookie: valid, status: http.StatusOK},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, status: http.StatusUnauthorized},
		{name: "no location", header: "Bearer " + noLocation, status: http.StatusUnauthorized},
		{name: "role allowed", roles: []Models.Role{Models.RoleTechnician}, header: "Bearer " + valid, status: http.StatusOK},
		{name: "role denied", roles: []Models.Role{Models.RoleRSM}, header: "Bearer " + valid, status: http.StatusForbidden},
		{name: "admin bypass", roles: []Models.Role{Models.RoleRSM}, header: "Bearer " + adminToken, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "jwt", Value: tt.cookie})
			}
			resp, err := newTestApp(auth, tt.roles...).Test(req, -1)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestClaimsPrincipal(t *testing.T) {
	claims := Claims{
		Name:             "sc",
		Role:             Models.RoleServiceCenter,
		LocationType:     Models.LocationServiceCenter,
		LocationID:       3,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "203"},
	}
	p, err := claims.Principal()
	if err != nil {
		t.Fatalf("Principal failed: %v", err)
	}
	if p.UserID != 203 || p.Location != (Models.Location{Type: Models.LocationServiceCenter, ID: 3}) {
		t.Errorf("Unexpected principal %+v", p)
	}

	claims.Role = "guest"
	if _, err := claims.Principal(); err == nil {
		t.Error("Expected unknown role to be rejected")
	}
	claims.Role = Models.RoleServiceCenter
	claims.Subject = "abc"
	if _, err := claims.Principal(); err == nil {
		t.Error("Expected non-numeric subject to be rejected")
	}
}
