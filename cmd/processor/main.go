// cmd/processor/main.go
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

	"github.com/sua-org/gidence-scm/internal/dedup"
	"github.com/sua-org/gidence-scm/internal/edgeapi"
	"github.com/sua-org/gidence-scm/internal/mqttclient"
	"github.com/sua-org/gidence-scm/internal/procconfig"
	"github.com/sua-org/gidence-scm/internal/reading"
	"github.com/sua-org/gidence-scm/internal/shipper"
	"github.com/sua-org/gidence-scm/internal/socketrecv"
	"github.com/sua-org/gidence-scm/internal/supervisor"
	"github.com/sua-org/gidence-scm/internal/syncclient"
	"github.com/sua-org/gidence-scm/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] warning: could not load .env: %v", err)
	} else {
		log.Printf("[main] .env loaded")
	}

	evidenceDir := getenv("PROCESSOR_EVIDENCE_DIR", "./evidence")
	socketPath := getenv("PROCESSOR_SOCKET_PATH", "/tmp/gidence-scm_uds.sock")
	configDir := getenv("PROCESSOR_CONFIG_DIR", ".")
	bindHost := getenv("PROCESSOR_BIND_HOST", "0.0.0.0")
	bindPort := getenvInt("PROCESSOR_BIND_PORT", 8080)
	serverURL := os.Getenv("PROCESSOR_SERVER_URL")
	clusterID := getenv("PROCESSOR_CLUSTER_ID", "default")
	engineCmd := getenv("PROCESSOR_ENGINE_CMD", "python3 engine.py")
	simulate := os.Getenv("PROCESSOR_SIMULATE") != ""

	store, err := procconfig.Load(
		configDir+"/processor.json",
		configDir+"/camera.json",
		func() procconfig.Processor {
			return procconfig.Processor{
				ID:      getenv("PROCESSOR_ID", "processor-"+strconv.FormatInt(time.Now().UnixMilli(), 10)),
				Name:    getenv("PROCESSOR_NAME", "unnamed processor"),
				Version: time.Now().UnixMilli(),
			}
		},
	)
	if err != nil {
		log.Fatalf("[main] failed to load processor config: %v", err)
	}

	if serverURL != "" {
		if _, err := store.UpdateProcessor(func(p *procconfig.Processor) {
			p.Webhook = &procconfig.Webhook{
				Scheme:       "http",
				Host:         serverURL,
				EvidencePath: "/evidences/" + p.ID,
				UpdatePath:   "/processor/" + p.ID + "/update",
			}
		}); err != nil {
			log.Printf("[main] warning: failed to seed webhook config: %v", err)
		}
	}

	snapshot := reading.New()
	queue := dedup.NewQueue(1024)

	receiver := socketrecv.New(socketPath, queue, snapshot)
	dedupWorker := dedup.NewWorker(queue, dedup.FileImageSource{Dir: "/tmp"}, evidenceDir)
	sup := supervisor.New(engineCmd, store, simulate)
	ship := shipper.New(shipper.Config{
		EvidenceDir: evidenceDir,
		EvidenceURL: webhookURL(store, "evidence"),
		UpdateURL:   webhookURL(store, "update"),
		ProcessorID: store.Processor().ID,
	}, func() []string {
		cams := store.Cameras()
		ids := make([]string, len(cams))
		for i, c := range cams {
			ids[i] = c.ID
		}
		return ids
	})

	var mqttCli *mqttclient.Client
	if os.Getenv("PROCESSOR_MQTT_HOST") != "" {
		mqttCli, err = mqttclient.NewClientFromEnv("processor-" + store.Processor().ID)
		if err != nil {
			log.Printf("[main] warning: mqtt not initialized: %v", err)
			mqttCli = nil
		}
	}
	beacon := telemetry.New(store, mqttCli, store.Processor().ID)
	beacon.PIDSource = sup.PID

	api := edgeapi.New(store, snapshot, evidenceDir)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", bindHost, bindPort),
		Handler: api.Router(),
	}

	syncCli := syncclient.New(store, clusterID, serverURL, 30*time.Second)

	done := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := receiver.Run(done); err != nil {
			log.Printf("[main] socket receiver terminated with error: %v", err)
		}
	}()
	go func() {
		if err := dedupWorker.Run(done); err != nil {
			log.Printf("[main] dedup worker terminated with error: %v", err)
		}
	}()
	go func() {
		if err := sup.Run(done); err != nil {
			log.Printf("[main] supervisor terminated with error: %v", err)
		}
	}()
	go ship.Run(done)
	go beacon.Run(done)
	go syncCli.Run(done, nil)

	go func() {
		log.Printf("[main] edge control API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] http server terminated with error: %v", err)
		}
	}()

	<-sig
	log.Println("[main] signal received, shutting down...")
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)

	if mqttCli != nil {
		mqttCli.Close()
	}
	time.Sleep(500 * time.Millisecond)
}

func webhookURL(store *procconfig.Store, kind string) string {
	wh := store.Processor().Webhook
	if wh == nil {
		return ""
	}
	path := wh.EvidencePath
	if kind == "update" {
		path = wh.UpdatePath
	}
	host := wh.Host
	if wh.Port != 0 {
		host = fmt.Sprintf("%s:%d", wh.Host, wh.Port)
	}
	return fmt.Sprintf("%s://%s%s", wh.Scheme, host, path)
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
