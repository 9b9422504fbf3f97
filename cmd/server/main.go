// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sua-org/gidence-scm/internal/auth"
	"github.com/sua-org/gidence-scm/internal/blobstore"
	"github.com/sua-org/gidence-scm/internal/hub"
	"github.com/sua-org/gidence-scm/internal/intake"
	"github.com/sua-org/gidence-scm/internal/liveness"
	"github.com/sua-org/gidence-scm/internal/push"
	"github.com/sua-org/gidence-scm/internal/serverapi"
	"github.com/sua-org/gidence-scm/internal/store"
	"github.com/sua-org/gidence-scm/internal/syncserver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] warning: could not load .env: %v", err)
	} else {
		log.Printf("[main] .env loaded")
	}

	host := getenv("HOST", "0.0.0.0")
	port := getenvInt("PORT", 8000)
	databaseURI := getenv("DATABASE_URI", "mongodb://localhost:27017")
	databaseName := getenv("DATABASE_NAME", "gidence_scm")
	evidenceDir := getenv("SERVER_EVIDENCE_DIR", "./evidence")
	keysDir := getenv("SERVER_KEYS_DIR", "./keys")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Connect(ctx, databaseURI, databaseName)
	cancel()
	if err != nil {
		log.Fatalf("[main] failed to connect to database: %v", err)
	}

	keys, err := auth.LoadOrGenerate(keysDir)
	if err != nil {
		log.Fatalf("[main] failed to load signing keys: %v", err)
	}
	authSvc := auth.New(st, keys)

	local := blobstore.NewLocal(evidenceDir)
	minioMirror, err := blobstore.NewMinioFromEnv()
	if err != nil {
		log.Printf("[main] warning: minio mirror not initialized: %v", err)
	}
	var images blobstore.Store = local
	if minioMirror != nil {
		images = &blobstore.MirroredStore{Primary: local, Secondary: minioMirror}
	}

	var livenessTracker *liveness.Tracker
	h := hub.New(func() map[string]int64 {
		return livenessTracker.Snapshot()
	})
	livenessTracker = liveness.New(h)

	pushDispatcher := push.New(st, h, mustAppleProvider(), push.NewAppleProviderFromEnv)
	intakeSrv := intake.New(st, images, h, pushDispatcher)
	syncSrv := syncserver.New(st, livenessTracker)
	api := serverapi.New(st, h, intakeSrv, syncSrv, authSvc)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: api.Router(),
	}

	done := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go h.Run(done)
	go livenessTracker.Run(done)
	go pushDispatcher.Run(done)

	go func() {
		log.Printf("[main] server HTTP API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] http server terminated with error: %v", err)
		}
	}()

	<-sig
	log.Println("[main] signal received, shutting down...")
	close(done)

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)

	st.Disconnect(context.Background())
	time.Sleep(500 * time.Millisecond)
}

func mustAppleProvider() push.Provider {
	p, err := push.NewAppleProviderFromEnv()
	if err != nil {
		log.Printf("[main] warning: apple push provider not initialized: %v", err)
		return nil
	}
	return p
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x > 0 {
			return x
		}
	}
	return def
}
