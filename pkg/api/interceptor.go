package api

import (
	"fmt"
	"net/http"
)

// ReadOnlyMiddleware wraps handler so that only read operations (GET) pass
// through; everything else is rejected. It is meant for a Unix-domain
// socket listener serving the local CLI without a client certificate —
// write access to the cluster still requires mTLS over the TCP listener.
func ReadOnlyMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusForbidden,
				fmt.Errorf("write operations not allowed on the local socket - use the TCP listener with mTLS"))
			return
		}
		handler.ServeHTTP(w, r)
	})
}
