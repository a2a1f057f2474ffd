// Command capture is the page client. It reads observed page fragments
// as NDJSON on stdin, runs the extraction pipeline for the page's
// platform, and forwards the resulting events to the background service
// over the page channel. Inbound envelopes are written to stdout for
// the page to render.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/capture"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/extract"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/config"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/ws"
)

func main() {
	var (
		serviceURL = flag.String("service", "ws://localhost:8081/ws", "background service websocket URL")
		pageURL    = flag.String("page", "", "URL of the observed page (required)")
		clientID   = flag.String("client", "", "page client id; generated when empty")
	)
	flag.Parse()

	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "usage: capture -page <url> [-service <ws url>] [-client <id>]")
		os.Exit(2)
	}
	if *clientID == "" {
		*clientID = "page-" + uuid.NewString()[:8]
	}
	log = log.WithClientID(*clientID)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	extractor, ok := extract.ForURL(*pageURL, rng, cfg.Capture.MaxDieGroups)
	if !ok {
		log.Error("page is not a supported platform", "page_url", *pageURL)
		os.Exit(1)
	}
	log.Info("capturing", "platform", string(extractor.Platform()), "page_url", *pageURL)

	client, err := ws.Dial(*serviceURL, *clientID, *pageURL, log)
	if err != nil {
		log.LogError(err, "connecting to background service")
		os.Exit(1)
	}
	defer client.Close()

	emitter := capture.EmitterFunc(func(event models.VTTEvent) {
		client.Send(models.NewEnvelope(models.TypeVTTEvent, event))
	})

	// Inbound envelopes go to the page as NDJSON on stdout.
	encoder := json.NewEncoder(os.Stdout)
	go func() {
		for env := range client.Inbound() {
			if err := encoder.Encode(env); err != nil {
				log.LogError(err, "writing inbound envelope")
			}
		}
	}()

	pipeline := capture.New(extractor, emitter, cfg.Capture.DedupWindow, nil, log)

	// Session markup is re-extracted on a timer so the roster stays
	// current even when the page never pushes a fresh snapshot.
	if period := cfg.Capture.SnapshotPeriod; period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				pipeline.Resnapshot()
			}
		}()
	}

	fragments := capture.StreamFragments(os.Stdin, log)
	pipeline.Run(fragments)

	// Stdin closed: the page is gone.
	emitter.Emit(models.VTTEvent{Kind: models.EventDisconnected})
	time.Sleep(100 * time.Millisecond)
	log.Info("page client exiting")
}
