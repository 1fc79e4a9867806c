// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const ctxKeyApprover contextKey = "approver"

// requireJWT guards the approval endpoints. Tokens are HMAC-signed; the
// subject claim identifies the approver and is threaded to handlers.
func (s *Server) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			s.writeError(w, http.StatusInternalServerError, "auth_unconfigured", "approval endpoints require a configured JWT secret")
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "token has no subject")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyApprover, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// approverFrom returns the authenticated approver identity.
func approverFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxKeyApprover).(string); ok {
		return v
	}
	return ""
}
