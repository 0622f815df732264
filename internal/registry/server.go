package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portseal/internal/domain"
	"portseal/internal/observability/metrics"
	"portseal/internal/observability/middleware"
)

const maxBundleBytes = 1 << 20

// NewRouter serves reg over HTTP.
func NewRouter(reg domain.PreKeyRegistry, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))
	r.Use(middleware.WithMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/bundles", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			reqID := chimw.GetReqID(r.Context())
			var b domain.PublishedBundle
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBundleBytes)).Decode(&b); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				log.WarnContext(r.Context(), "bundle decode failed", "error", err, "request_id", reqID)
				return
			}
			if err := reg.Publish(r.Context(), b); err != nil {
				http.Error(w, err.Error(), statusFor(err))
				log.WarnContext(r.Context(), "bundle publish failed", "principal", b.Principal, "error", err, "request_id", reqID)
				return
			}
			log.InfoContext(r.Context(), "bundle published", "principal", b.Principal, "one_time_prekeys", len(b.OneTimePreKeys), "request_id", reqID)
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/{principal}/claim", func(w http.ResponseWriter, r *http.Request) {
			reqID := chimw.GetReqID(r.Context())
			principal := domain.PrincipalID(chi.URLParam(r, "principal"))
			bundle, err := reg.Claim(r.Context(), principal)
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				metrics.PreKeyClaimsTotal.WithLabelValues("failure").Inc()
				log.WarnContext(r.Context(), "bundle claim failed", "principal", principal, "error", err, "request_id", reqID)
				return
			}
			metrics.PreKeyClaimsTotal.WithLabelValues("success").Inc()
			log.InfoContext(r.Context(), "bundle claimed", "principal", principal, "has_one_time", bundle.OneTimePreKey != nil, "request_id", reqID)
			writeJSON(w, http.StatusOK, bundle)
		})
	})

	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedBundle):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPrincipalNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPreKeyExhausted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
