package main

import (
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/vatsal3003/webp-batch/internal/config"
	"github.com/vatsal3003/webp-batch/internal/reencode"
	"github.com/vatsal3003/webp-batch/internal/watcher"
	"github.com/vatsal3003/webp-batch/pkg/models"
)

func main() {
	cfg := config.NewConfig()

	manifestPath := flag.String("manifest", cfg.ManifestPath, "path to the images manifest")
	watch := flag.Bool("watch", false, "keep running and re-encode sources when they change")
	flag.Parse()

	manifest, err := config.LoadManifest(*manifestPath)
	if err != nil {
		log.Fatalln("ERROR", err)
	}

	jobs, err := manifest.Jobs()
	if err != nil {
		log.Fatalln("ERROR", err)
	}

	reencoder := reencode.NewReencoder(nil)

	results, err := reencoder.RunBatch(jobs)
	if err != nil {
		log.Fatalln("ERROR", err)
	}
	log.Printf("INFO %d converted, %d skipped", count(results, models.StatusConverted), count(results, models.StatusSkipped))

	if !*watch {
		return
	}

	w, err := watcher.NewWatcher(reencoder, jobs)
	if err != nil {
		log.Fatalln("ERROR", err)
	}
	if err := w.Start(); err != nil {
		log.Fatalln("ERROR", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	log.Println("Received shutdown signal")
	if err := w.Stop(); err != nil {
		log.Println("ERROR failed to stop watcher:", err.Error())
	}
}

func count(results []models.JobResult, status models.JobStatus) int {
	n := 0
	for _, res := range results {
		if res.Status == status {
			n++
		}
	}
	return n
}
