// Package redis hosts the coordinator's Redis integration: the shared
// connection, a thin client wrapper, the cluster-wide advisory locker and a
// Redis-backed TransactionStore.
package redis

import (
	"crypto/tls"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Options are the Redis configurable options.
type Options struct {
	// Redis server(cluster) address.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
}

// Connection contains the Redis client connection object and the Options used to connect.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

var connection *Connection
var mux sync.Mutex

// IsConnectionInstantiated returns true if the connection instance is valid.
func IsConnectionInstantiated() bool {
	return connection != nil
}

// OpenConnection creates a singleton connection and returns it for every
// call. An empty Address falls back to the default localhost setup, matching
// how the cassandra package defaults its keyspace.
func OpenConnection(options Options) (*Connection, error) {
	if connection != nil {
		return connection, nil
	}
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}
	if options.Address == "" {
		options.Address = DefaultOptions().Address
	}

	connection = openConnection(options)
	return connection, nil
}

func openConnection(options Options) *Connection {
	client := redis.NewClient(&redis.Options{
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
		TLSConfig: options.TLSConfig,
	})
	return &Connection{
		Client:  client,
		Options: options,
	}
}

// CloseConnection closes the singleton connection, if open.
func CloseConnection() error {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil
	}
	err := connection.Client.Close()
	connection = nil
	return err
}
