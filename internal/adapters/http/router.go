package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuca-profiler/yuca/internal/config"
	"github.com/yuca-profiler/yuca/internal/core/auth"
	"github.com/yuca-profiler/yuca/internal/logger"
)

type RouterDeps struct {
	Profiler *ProfilerHandler
	// Ws authenticates its own clients; browsers cannot set headers on upgrades.
	Ws       http.Handler
	Tokens   *auth.Service
	Gatherer prometheus.Gatherer
	Log      logger.Logger
}

func NewRouter(cfg *config.Config, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	global := NewChain()
	global.Use(CORS(cfg.AllowedOrigins))

	rpc := NewChain()
	rpc.Use(RequestLogger(deps.Log))
	rpc.Use(Auth(deps.Tokens, deps.Log))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.Ws != nil {
		mux.Handle("GET /ws/reports", deps.Ws)
	}

	mux.Handle("POST /yuca/start", rpc.ThenFunc(deps.Profiler.Start))
	mux.Handle("POST /yuca/stop", rpc.ThenFunc(deps.Profiler.Stop))
	mux.Handle("POST /yuca/read", rpc.ThenFunc(deps.Profiler.Read))
	mux.Handle("POST /yuca/dump", rpc.ThenFunc(deps.Profiler.Dump))
	mux.Handle("POST /yuca/purge", rpc.ThenFunc(deps.Profiler.Purge))

	return global.Then(mux)
}

func NewServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
