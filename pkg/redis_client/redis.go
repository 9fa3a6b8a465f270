package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/railops/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["RAILOPS_REDIS_ADDRESS"] != "" {
		address = env["RAILOPS_REDIS_ADDRESS"]
	}

	if env["RAILOPS_REDIS_PASSWORD"] != "" {
		password = env["RAILOPS_REDIS_PASSWORD"]
	}

	if env["RAILOPS_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["RAILOPS_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	return ConnectClient(redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	}))
}

// ConnectClient sets up the queue connection on an existing client
func ConnectClient(client *redis.Client) error {
	Client = client

	statusCmd := Client.Ping(context.Background())
	err := statusCmd.Err()
	if err != nil {
		return err
	}

	QueueConnection, err = rmq.OpenConnectionWithRedisClient("railops", Client, nil)
	if err != nil {
		return err
	}

	return nil
}
