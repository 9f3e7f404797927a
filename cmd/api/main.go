// cmd/api/main.go
package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"salesnexus/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	log, err := logger.New(getEnv("LOG_MODE", "development"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	salesServiceURL, err := url.Parse(getEnv("SALES_SERVICE_URL", "http://localhost:8081"))
	if err != nil {
		log.Fatal("invalid SALES_SERVICE_URL", zap.Error(err))
	}

	salesProxy := httputil.NewSingleHostReverseProxy(salesServiceURL)
	salesProxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	salesProxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("sales service unreachable", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "sales service unavailable", http.StatusBadGateway)
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Mount("/api/v1", http.StripPrefix("/api/v1", salesProxy))

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(router, "api-gateway"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("API gateway listening", zap.String("port", port), zap.Stringer("sales", salesServiceURL))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("API gateway stopped", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
