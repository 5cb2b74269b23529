// Package redis provides a Redis client wrapper built on go-redis and a
// storage.Storage backend on top of it, so checkpoints can be kept in Redis.
//
// # Quick Start
//
//	client, err := redis.New(redis.Config{Addr: "localhost:6379"}, log)
//	store := redis.NewStorage(client, "datapipe")
//
// Importing the package registers the "redis" storage provider; pass a
// *redis.Config as the provider config to storage.New.
package redis
