package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/rohits-web03/meetingvault/docs"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/rohits-web03/meetingvault/internal/api/handlers"
	"github.com/rohits-web03/meetingvault/internal/api/middleware"
	"github.com/rohits-web03/meetingvault/internal/config"
	"github.com/rs/cors"
)

func NewRouter(h *handlers.MeetingHandler, cfg config.Config, log *zap.Logger) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(cfg.CorsConfig)

	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mainMux.Handle("GET /metrics", promhttp.Handler())
	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	// collection routes answer with and without the trailing slash
	collection := func(method, path string, fn http.HandlerFunc) {
		mainMux.HandleFunc(method+" "+path+"/{$}", fn)
		mainMux.HandleFunc(method+" "+path, fn)
	}

	collection(http.MethodPost, "/meetings/save-record", h.SaveRecord)
	collection(http.MethodGet, "/meetings/get-all-records", h.GetAllRecords)
	collection(http.MethodDelete, "/meetings/delete-all-records", h.DeleteAllRecords)

	mainMux.HandleFunc("GET /meetings/get-record/{id}", h.GetRecord)
	mainMux.HandleFunc("GET /meetings/get-record/{id}/download/{artifact}", h.DownloadRecord)
	mainMux.HandleFunc("PUT /meetings/update-record/{id}", h.UpdateRecord)
	mainMux.HandleFunc("DELETE /meetings/delete-record/{id}", h.DeleteRecord)

	log.Info("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(log)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recover(log)(handler)
	return handler
}
