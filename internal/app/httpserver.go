package app

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ecoreport-bot/internal/metrics"
)

//go:embed static/index.html
var indexHTML []byte

// Pinger — проверка БД для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	srv *http.Server
}

// Handler: / — статическая страница админа, /healthz — пинг БД, /metrics — Prometheus.
func Handler(db Pinger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func StartHTTP(ctx context.Context, addr string, db Pinger, log *zap.Logger) *HTTPServer {
	srv := &http.Server{Addr: addr, Handler: Handler(db), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	log.Info("admin http started", zap.String("addr", addr))
	return &HTTPServer{srv: srv}
}
