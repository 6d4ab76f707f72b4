package userstore

import (
	"net/http"
	"net/http/httptest"

	"github.com/StricklySoft/compliance-auth/pkg/auth"
)

func httpCapture(dst *auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*dst, _ = auth.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func serveWithPrincipal(h http.Handler, p auth.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), p))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
