package util

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB opens and pings a MongoDB connection.
func ConnectDB(ctx context.Context, uri string) (*mongo.Client, error) {
	LogInfo("starting MongoDB connection..")
	client, err := mongo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "create mongo client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}

	// try to ping the database
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping mongo")
	}

	LogInfo("MongoDB connection successful")
	return client, nil
}

// GetCollection Get collection from Db
func GetCollection(client *mongo.Client, db, name string) *mongo.Collection {
	return client.Database(db).Collection(name)
}

// ConnectRedis opens a redis client from a redis:// URL and pings it.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	LogInfo("starting redis connection..", zap.String("url", redactURL(redisURL)))
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}

	LogInfo("redis connection successful..")
	return client, nil
}

func redactURL(raw string) string {
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return "invalid"
	}
	return opts.Addr
}
