package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/vatsal3003/webp-batch/internal/config"
	"github.com/vatsal3003/webp-batch/internal/rabbitmq"
)

func main() {
	cfg := config.NewConfig()

	manifestPath := flag.String("manifest", cfg.ManifestPath, "path to the images manifest")
	flag.Parse()

	manifest, err := config.LoadManifest(*manifestPath)
	if err != nil {
		log.Println("ERROR", err)
		return
	}

	jobs, err := manifest.Jobs()
	if err != nil {
		log.Println("ERROR", err)
		return
	}

	// Connect to RabbitMQ
	mqClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		log.Println("ERROR failed to connect to rabbitmq:", err.Error())
		return
	}
	defer mqClient.Close()

	ctx := context.Background()
	for _, job := range jobs {
		if err := mqClient.PublishJob(ctx, job); err != nil {
			log.Println("ERROR failed to publish job:", err.Error())
			return
		}
		fmt.Printf("Published re-encode job %s for image %s\n", job.JobID, job.SourcePath)
	}
}
