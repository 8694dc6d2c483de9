package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/vatsal3003/webp-batch/internal/config"
	"github.com/vatsal3003/webp-batch/internal/rabbitmq"
	"github.com/vatsal3003/webp-batch/internal/reencode"
	"github.com/vatsal3003/webp-batch/internal/status"
	"github.com/vatsal3003/webp-batch/pkg/models"
)

func main() {
	cfg := config.NewConfig()

	reencoder := reencode.NewReencoder(nil)
	handle := reencoder.ProcessJob

	if cfg.RedisAddr != "" {
		store, err := status.Dial(context.Background(), cfg.RedisAddr, cfg.StatusTTL)
		if err != nil {
			log.Println("ERROR", err)
			return
		}
		defer store.Close()

		handle = func(job models.ImageJob) error {
			res, err := reencoder.Process(job)
			if err != nil {
				return err
			}
			if err := store.Record(context.Background(), res); err != nil {
				log.Println("ERROR", err)
			}
			return nil
		}
	}

	// Connect to RabbitMQ
	mqClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		log.Println("ERROR failed to connect to rabbitmq:", err.Error())
		return
	}
	defer mqClient.Close()

	log.Println("INFO starting worker")

	// Graceful shutdown
	stopChan := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		close(stopChan)
	}()

	err = mqClient.ConsumeJobs(handle, stopChan)
	if err != nil {
		log.Println("ERROR failed to start consuming jobs:", err.Error())
		return
	}
}
