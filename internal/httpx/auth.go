package httpx

import "net/http"

// Identity is the acting caller as supplied by the authentication
// collaborator in front of this service. The default implementation trusts
// the gateway-set headers; real verification happens upstream.
type Identity struct {
	UserID string
	Role   string
}

func (id Identity) IsAdmin() bool { return id.Role == "admin" }

type IdentityFunc func(*http.Request) Identity

func HeaderIdentity(r *http.Request) Identity {
	return Identity{
		UserID: r.Header.Get("X-User-Id"),
		Role:   r.Header.Get("X-User-Role"),
	}
}

func requireUser(idf IdentityFunc, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if idf(r).UserID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		next(w, r)
	}
}

func requireAdmin(idf IdentityFunc, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := idf(r)
		if id.UserID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		if !id.IsAdmin() {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
			return
		}
		next(w, r)
	}
}
