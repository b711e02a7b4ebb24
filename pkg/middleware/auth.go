package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
)

type contextKey string

const ContractorIDKey contextKey = "contractor_id"

func AuthMiddleware(tokenSvc *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract Bearer token; websocket clients may only be able to
			// pass it as a query parameter.
			token := ""
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			switch {
			case len(parts) == 2 && parts[0] == "Bearer":
				token = parts[1]
			case r.URL.Query().Get("token") != "":
				token = r.URL.Query().Get("token")
			default:
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}
			contractorID, err := tokenSvc.ValidateToken(token)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ContractorIDKey, contractorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
