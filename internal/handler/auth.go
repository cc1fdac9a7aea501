package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/carekitchen/mealorder/internal/domain/identity"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

type identityKey struct{}

// identityFrom extracts the authenticated identity from the request context.
func identityFrom(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey{}).(*identity.Identity)
	return id
}

// authenticate resolves the API key to an identity: HMAC-SHA256 with the
// configured pepper, repository lookup, then a constant-time comparison of
// the stored hash to guard against timing side-channels.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		mac := hmac.New(sha256.New, h.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := h.identities.FindByKeyHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// patientOnly rejects non-patient callers. Carts belong to patient sessions.
func (h *Handler) patientOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id := identityFrom(r.Context()); id == nil || id.Role != identity.RolePatient {
			writeError(w, http.StatusForbidden, "patients only")
			return
		}
		next(w, r)
	}
}

// staffOnly rejects non-staff callers.
func (h *Handler) staffOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id := identityFrom(r.Context()); id == nil || id.Role != identity.RoleStaff {
			writeError(w, http.StatusForbidden, "staff only")
			return
		}
		next(w, r)
	}
}
