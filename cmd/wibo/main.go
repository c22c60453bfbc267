package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wiboteam/wibo-ai-agent/internal/clock"
	"github.com/wiboteam/wibo-ai-agent/internal/config"
	"github.com/wiboteam/wibo-ai-agent/internal/dispatch"
	"github.com/wiboteam/wibo-ai-agent/internal/extract"
	"github.com/wiboteam/wibo-ai-agent/internal/httpapi"
	"github.com/wiboteam/wibo-ai-agent/internal/lifecycle"
	"github.com/wiboteam/wibo-ai-agent/internal/observability"
	"github.com/wiboteam/wibo-ai-agent/internal/openai"
	"github.com/wiboteam/wibo-ai-agent/internal/reconcile"
	"github.com/wiboteam/wibo-ai-agent/internal/router"
	"github.com/wiboteam/wibo-ai-agent/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL, cfg.StatePath)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	var llm *openai.Client
	if cfg.OpenAIAPIKey != "" {
		llm = openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	} else {
		log.Printf("OPENAI_API_KEY not set: running with rule-based extraction and canned chat replies")
	}

	extractor, err := extract.NewExtractor(cfg.ExtractorMode, llm, cfg.Location)
	if err != nil {
		log.Fatalf("extractor init failed: %v", err)
	}

	var chat router.ChatModel
	if llm != nil {
		chat = llm
	} else {
		chat = router.ChatFunc(func(_ context.Context, _ []store.Message) (string, error) {
			return "Dimmi cosa hai in programma e quando, e ti ricorderò io!", nil
		})
	}

	var dispatcher dispatch.Dispatcher
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFrom != "" {
		dispatcher = dispatch.NewTwilio(dispatch.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		})
		log.Printf("dispatcher: twilio (from %s)", cfg.TwilioFrom)
	} else {
		dispatcher = dispatch.NewLogDispatcher()
		log.Printf("dispatcher: log only (twilio credentials not set)")
	}

	clk := clock.NewSystem(cfg.Location)
	engine := lifecycle.New(clk, cfg.Location, cfg.BeforeLead, cfg.AfterLag)
	feed := dispatch.NewFeed()

	conv := router.New(st, engine, extractor, chat, clk, metrics, cfg.HistoryWindow)
	loop := reconcile.New(st, engine, dispatcher, feed, metrics, clk, cfg.ReconcileInterval, cfg.DispatchTimeout)

	api := httpapi.New(cfg, conv, st, feed, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	loop.Start(runCtx)

	go func() {
		log.Printf("server listening on %s (zone %s, reconcile every %s)", cfg.BindAddr, cfg.Timezone, cfg.ReconcileInterval)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
