package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"homeline/internal/domain"
	"homeline/internal/repo"
)

type AuthConfig struct {
	JWTSecret string
	// AllowMemberHeader accepts a bare X-Member-ID header instead of a
	// token. Local and test use only.
	AllowMemberHeader bool
	Logger            *log.Logger
}

// Principal is the authenticated member attached to the request context.
type Principal struct {
	MemberID string
	Role     string
	Source   string
}

type principalKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func actorFromContext(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.MemberID != "" {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

func authenticateJWT(token, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}

func publicPath(basePath, requestPath string) bool {
	switch requestPath {
	case basePath + "/health", basePath + "/openapi", basePath + "/openapi.json", basePath + "/openapi.yaml":
		return true
	}
	return false
}

// newAuthMiddleware resolves the caller to a Member principal. The member
// record is the source of truth for role and active state.
func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	resolve := func(req *http.Request) (Principal, error) {
		if cfg.AllowMemberHeader {
			if id := strings.TrimSpace(req.Header.Get("X-Member-ID")); id != "" {
				return lookupMember(req.Context(), r, id, "header")
			}
		}
		authz := req.Header.Get("Authorization")
		if strings.HasPrefix(authz, "Bearer ") {
			memberID, err := authenticateJWT(strings.TrimPrefix(authz, "Bearer "), cfg.JWTSecret)
			if err != nil {
				return Principal{}, err
			}
			return lookupMember(req.Context(), r, memberID, "jwt")
		}
		return Principal{}, errors.New("no credentials")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if publicPath(basePath, req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			p, err := resolve(req)
			if err != nil {
				cfg.logger().Printf("auth: %v", err)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), p)))
		})
	}
}

func lookupMember(ctx context.Context, r repo.Repo, memberID, source string) (Principal, error) {
	m, err := r.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Principal{}, errors.New("unknown member " + memberID)
		}
		return Principal{}, err
	}
	if !m.IsActive {
		return Principal{}, errors.New("member " + memberID + " is not active")
	}
	return Principal{MemberID: m.ID, Role: m.Role, Source: source}, nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"}}`))
}

func adminOnly(p Principal) huma.StatusError {
	if p.Role == domain.RoleOwner || p.Role == domain.RoleAdmin {
		return nil
	}
	return newAPIError(http.StatusForbidden, "forbidden", "admin role required", nil)
}
