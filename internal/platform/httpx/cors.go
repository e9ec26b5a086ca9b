package httpx

import "net/http"

// CORS header values applied to every function response.
const (
	CORSAllowOrigin  = "*"
	CORSAllowHeaders = "authorization, x-client-info, apikey, content-type"
	CORSAllowMethods = "GET, POST, OPTIONS"
)

// CORS sets permissive cross-origin headers on every response, errors
// included, and answers preflight requests before the wrapped handler runs.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		header.Set("Access-Control-Allow-Headers", CORSAllowHeaders)
		header.Set("Access-Control-Allow-Methods", CORSAllowMethods)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
