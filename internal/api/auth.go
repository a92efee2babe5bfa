package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"log"
	"net/http"
	"strings"
)

// AdminTokenHeader carries the admin token when no Authorization header is used
const AdminTokenHeader = "X-Admin-Token"

// AdminGuard protects routes that overwrite persistent data.
// An empty token disables the guard.
type AdminGuard struct {
	// Tokens are compared as HMACs so timing does not leak length or prefix
	secretKey []byte
	tokenMAC  []byte
}

// NewAdminGuard creates a guard for token
func NewAdminGuard(token string) *AdminGuard {
	g := &AdminGuard{}
	if token == "" {
		return g
	}

	g.secretKey = make([]byte, 32)
	if _, err := rand.Read(g.secretKey); err != nil {
		log.Printf("⚠️ Failed to generate admin key, using fallback")
		g.secretKey = []byte("snake-arena-default-secret-key32")
	}
	g.tokenMAC = g.sign(token)

	log.Println("🔐 Admin token required for data import")
	return g
}

// Enabled reports whether a token is configured
func (g *AdminGuard) Enabled() bool {
	return g != nil && g.tokenMAC != nil
}

// Validate checks the token presented by r
func (g *AdminGuard) Validate(r *http.Request) bool {
	if !g.Enabled() {
		return true
	}
	provided := requestToken(r)
	if provided == "" {
		return false
	}
	return hmac.Equal(g.sign(provided), g.tokenMAC)
}

// Middleware rejects requests without a valid admin token
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Validate(r) {
			writeError(w, "Admin authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *AdminGuard) sign(token string) []byte {
	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// requestToken reads "Authorization: Bearer <token>" or the X-Admin-Token header
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(AdminTokenHeader))
}
