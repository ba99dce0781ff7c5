package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tutormula/internal/logger/sl"
	"tutormula/internal/models"
)

const adminSubject = "admin"

// Claims identify an admin caller. AccountID is set when the caller named an account holding the admin role.
type Claims struct {
	AccountID *int64 `json:"account_id,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessToken signs an HS256 admin token
func NewAccessToken(secret, issuer string, ttl time.Duration, accountID *int64, now time.Time) (string, error) {
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, issuer and expiry
func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject != adminSubject {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// adminID is the audit actor for the request, nil for a token not bound to an account
func adminID(r *http.Request) *int64 {
	if c := claimsFromContext(r.Context()); c != nil {
		return c.AccountID
	}
	return nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAdmin rejects requests without a valid admin bearer token
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing token")
			return
		}
		claims, err := ParseToken(s.auth.JWTSecret, s.auth.JWTIssuer, token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, msg)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type tokenRequest struct {
	AccountID *int64 `json:"account_id,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleToken exchanges the shared admin secret for a short-lived JWT
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleToken")

	secret := r.Header.Get("X-Admin-Token")
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.auth.Secret)) != 1 {
		log.Warn("rejected admin token request")
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid admin secret")
		return
	}

	var req tokenRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
			return
		}
	}

	if req.AccountID != nil {
		if _, err := s.svc.Identity.RequireRole(r.Context(), *req.AccountID, models.RoleAdmin, "acting as an administrator"); err != nil {
			log.Warn("rejected admin token actor", slog.Int64("account_id", *req.AccountID), sl.Err(err))
			writeServiceError(w, r, log, err)
			return
		}
	}

	now := s.now()
	token, err := NewAccessToken(s.auth.JWTSecret, s.auth.JWTIssuer, s.auth.JWTTTL, req.AccountID, now)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("issued admin token")
	writeJSON(w, r, http.StatusCreated, tokenResponse{Token: token, ExpiresAt: now.Add(s.auth.JWTTTL).UTC()})
}
