package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/finfacts-cli/internal/fetcher"
	"github.com/sells-group/finfacts-cli/internal/ingest"
	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP upload and query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(svc, st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("http server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			zap.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

func newRouter(svc *ingest.Service, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	uploadLimiter := rate.NewLimiter(rate.Limit(cfg.Server.UploadRateLimit), cfg.Server.UploadBurst)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/upload", func(w http.ResponseWriter, req *http.Request) {
		if !uploadLimiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "upload rate exceeded, retry later")
			return
		}
		handleUpload(svc, w, req)
	})

	r.Route("/companies/{name}", func(r chi.Router) {
		r.Get("/facts", companyHandler(st, func(req companyReq) (any, error) {
			return svc.BestFacts(req.ctx, req.name)
		}))
		r.Get("/metrics", companyHandler(st, func(req companyReq) (any, error) {
			return req.st.ListMetrics(req.ctx, req.id)
		}))
		r.Get("/questions", companyHandler(st, func(req companyReq) (any, error) {
			return req.st.ListQuestions(req.ctx, req.id)
		}))
		r.Get("/findings", companyHandler(st, func(req companyReq) (any, error) {
			return req.st.ListFindings(req.ctx, req.id)
		}))
	})

	return r
}

func handleUpload(svc *ingest.Service, w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close() //nolint:errcheck

	periodType := req.FormValue("period_type")
	if periodType == "" {
		periodType = string(model.PeriodMonthly)
	}

	intake, err := fetcher.Load(header.Filename, file, fetcher.LoadOptions{
		Meta: fetcher.TableMeta{
			CompanyName:      req.FormValue("company"),
			PeriodType:       model.PeriodType(periodType),
			Currency:         req.FormValue("currency"),
			ExtractionMethod: "http_upload",
			Confidence:       1.0,
		},
		CSV: fetcher.CSVOptions{Charset: req.FormValue("charset"), TrimSpace: true},
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	doc := &model.Document{
		Filename:    intake.Filename,
		ContentHash: intake.ContentHash,
	}
	result, err := svc.IngestBatch(req.Context(), doc, intake.Rows)
	if err != nil {
		zap.L().Error("upload ingest failed", zap.String("filename", doc.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type companyReq struct {
	ctx  context.Context
	st   store.Store
	name string
	id   int64
}

func companyHandler(st store.Store, list func(companyReq) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		company, err := st.GetCompanyByName(req.Context(), name)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown company")
			return
		}
		out, err := list(companyReq{ctx: req.Context(), st: st, name: name, id: company.ID})
		if err != nil {
			zap.L().Error("query failed", zap.String("company", name), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
