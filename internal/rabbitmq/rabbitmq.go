package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vatsal3003/webp-batch/pkg/models"
)

const publishTimeout = 5 * time.Second

type RabbitMQClient struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewRabbitMQClient(url, queueName string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQClient{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
	}, nil
}

func (c *RabbitMQClient) Close() {
	if c.channel != nil {
		c.channel.Close()
	}

	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *RabbitMQClient) PublishJob(ctx context.Context, job models.ImageJob) error {
	body, err := encodeJob(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.JobID,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// ConsumeJobs hands jobs to processFunc one at a time until stopChan is
// closed or the delivery channel goes away. Every delivery is acked,
// failed ones included, since jobs are not retried.
func (c *RabbitMQClient) ConsumeJobs(processFunc func(models.ImageJob) error, stopChan <-chan struct{}) error {
	err := c.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	log.Println("INFO worker started, waiting for messages")

	for {
		select {
		case <-stopChan:
			log.Println("INFO worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				log.Println("INFO delivery channel closed")
				return nil
			}
			handleDelivery(d, processFunc)
		}
	}
}

func handleDelivery(d amqp.Delivery, processFunc func(models.ImageJob) error) {
	handleBody(d.Body, d.Acknowledger, d.DeliveryTag, processFunc)
}

func handleBody(body []byte, ack amqp.Acknowledger, tag uint64, processFunc func(models.ImageJob) error) {
	defer func() {
		if ack == nil {
			return
		}
		if err := ack.Ack(tag, false); err != nil {
			log.Println("ERROR failed to ack message:", err.Error())
		}
	}()

	job, err := decodeJob(body)
	if err != nil {
		log.Println("ERROR unmarshaling job:", err.Error())
		return
	}

	log.Printf("INFO received job %s for %s", job.JobID, job.SourcePath)

	if err := processFunc(job); err != nil {
		log.Printf("ERROR processing job %s: %s", job.JobID, err)
		return
	}

	log.Println("INFO successfully processed job", job.JobID)
}

func encodeJob(job models.ImageJob) ([]byte, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return body, nil
}

func decodeJob(body []byte) (models.ImageJob, error) {
	var job models.ImageJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return job, nil
}
