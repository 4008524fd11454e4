// Package testutil holds helpers for tests that need a live Redis or Kafka.
package testutil

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// Default addresses, overridable with LOB_TEST_REDIS_ADDR and LOB_TEST_KAFKA_ADDR
const (
	DefaultRedisAddr = "localhost:6379"
	DefaultKafkaAddr = "localhost:9092"
)

// RedisAddr returns the Redis address integration tests should use
func RedisAddr() string {
	if addr := os.Getenv("LOB_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return DefaultRedisAddr
}

// KafkaAddr returns the Kafka broker integration tests should use
func KafkaAddr() string {
	if addr := os.Getenv("LOB_TEST_KAFKA_ADDR"); addr != "" {
		return addr
	}
	return DefaultKafkaAddr
}

// SkipIfRedisUnavailable skips the test if Redis is unavailable on the specified address
func SkipIfRedisUnavailable(t *testing.T, redisAddr string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skipf("Skipping test: Redis not available at %s - %v", redisAddr, err)
	}
}

// SkipIfKafkaUnavailable skips the test if Kafka is unavailable on the specified address
func SkipIfKafkaUnavailable(t *testing.T, kafkaAddr string) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", kafkaAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", kafkaAddr, err)
		return
	}
	_ = conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// a broker that accepts TCP but cannot serve metadata is as good as down
	kconn, err := kafka.DialContext(ctx, "tcp", kafkaAddr)
	if err != nil {
		t.Skipf("Skipping test: Kafka at %s is not responding correctly - %v", kafkaAddr, err)
		return
	}
	defer kconn.Close()

	if _, err := kconn.Brokers(); err != nil && !errors.Is(err, io.EOF) {
		t.Skipf("Skipping test: Kafka at %s is not responding correctly - %v", kafkaAddr, err)
	}
}
