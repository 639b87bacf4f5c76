package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite"

	"github.com/BartekS5/dailyetl/pkg/logger"
)

// sqlDrivers maps a configured source driver to its database/sql name.
var sqlDrivers = map[string]string{
	"postgres":  "pgx",
	"sqlserver": "sqlserver",
	"sqlite":    "sqlite",
}

// ConnectSQL opens a single-connection pool and pings it so that an
// unreachable or misconfigured source fails here rather than on the query.
func ConnectSQL(ctx context.Context, driver, dsn string, timeout time.Duration) (*sql.DB, error) {
	name, ok := sqlDrivers[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening SQL database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to SQL database (ping failed): %w", err)
	}

	logger.Debugf("Successfully connected to %s source.", driver)
	return db, nil
}

// ConnectMongo creates a client and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	connectCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error creating MongoDB client: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)

		return nil, fmt.Errorf("error connecting to MongoDB (ping failed): %w", err)
	}

	logger.Debugf("Successfully connected to MongoDB.")
	return client, nil
}

// ElasticOptions configures NewElasticsearch.
type ElasticOptions struct {
	Address  string
	Username string
	Password string

	// Transport is owned by the caller, who closes its idle connections
	// once done with the client.
	Transport http.RoundTripper
}

// NewElasticsearch builds a client for one node. Retries are disabled: a
// failed request is reported to the caller as is.
func NewElasticsearch(opts ElasticOptions) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{opts.Address},
		Username:     opts.Username,
		Password:     opts.Password,
		Transport:    opts.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}
	return client, nil
}

// ConnectRedis creates a client and pings it.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to Redis (ping failed): %w", err)
	}
	return client, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
