package panicerr

import (
	"net/http"

	"github.com/kazz187/taskpulse/pkg/cerr"
)

// NewRecoverChiMiddleware turns a handler panic into an Internal error
// response. It must run inside cerr.NewJSONErrorChiMiddleware.
func NewRecoverChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := Safe(func() error {
				next.ServeHTTP(w, r)
				return nil
			})()
			if err != nil {
				cerr.SetJSONError(r.Context(), cerr.NewError(cerr.Internal, "server error", err))
			}
		})
	}
}
