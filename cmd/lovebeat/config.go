package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/function61/gokit/envvar"
	"github.com/function61/lovebeat/pkg/lbmetrics"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/function61/lovebeat/pkg/lbstore"
)

const (
	storeRedis    = "redis"
	storeDynamoDb = "dynamodb"
)

// everything comes from ENV, because that is what Lambda gives us
type config struct {
	Store         string
	RedisUrl      string
	DynamoDbTable string
	AwsRegion     string
	TxMaxAttempts int
}

func configFromEnv() (*config, error) {
	conf := &config{
		Store:         envOr("LOVEBEAT_STORE", storeRedis),
		AwsRegion:     envOr("AWS_REGION", "us-east-1"),
		TxMaxAttempts: lbstore.DefaultMaxAttempts,
	}

	switch conf.Store {
	case storeRedis:
		conf.RedisUrl = envOr("REDIS_URL", "redis://localhost:6379/0")
	case storeDynamoDb:
		table, err := envvar.Required("DYNAMODB_TABLE")
		if err != nil {
			return nil, err
		}
		conf.DynamoDbTable = table
	default:
		return nil, fmt.Errorf("LOVEBEAT_STORE: unsupported store: %s", conf.Store)
	}

	if attemptsStr := os.Getenv("LOVEBEAT_TX_MAX_ATTEMPTS"); attemptsStr != "" {
		attempts, err := strconv.Atoi(attemptsStr)
		if err != nil || attempts < 0 {
			return nil, fmt.Errorf("LOVEBEAT_TX_MAX_ATTEMPTS: not a non-negative integer: %s", attemptsStr)
		}
		conf.TxMaxAttempts = attempts
	}

	return conf, nil
}

func openStore(ctx context.Context, conf *config) (lbstore.Store, error) {
	switch conf.Store {
	case storeRedis:
		return lbstore.NewRedis(ctx, conf.RedisUrl)
	case storeDynamoDb:
		return lbstore.NewDynamoDB(conf.AwsRegion, conf.DynamoDbTable)
	default:
		return nil, fmt.Errorf("unsupported store: %s", conf.Store)
	}
}

// metrics can be nil (CLI commands don't expose them). caller closes app.Store.
func getApp(ctx context.Context, metrics *lbmetrics.Metrics, logger *log.Logger) (*lbstate.App, error) {
	conf, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, conf)
	if err != nil {
		return nil, err
	}

	return lbstate.New(store, conf.TxMaxAttempts, metrics, logger), nil
}

// name the built-in notification agent claims incidents with
func agentName() string {
	return envOr("LOVEBEAT_AGENT", "sns")
}

func envOr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
