package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	SubjectsCollection        = "subjects"         // identity source records
	RefreshSessionsCollection = "refresh_sessions" // refresh-session visibility records
)

// Connect opens an instrumented MongoDB client and verifies the connection
// with a ping. Callers own the returned client and must Disconnect it on
// shutdown.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	log.Info().Str("uri", uri).Msg("Connecting to MongoDB")

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB primary: %w", err)
	}

	log.Info().Msg("MongoDB client initialized successfully.")
	return client, nil
}

// Ping verifies connectivity with a short timeout. Useful for health checks.
func Ping(ctx context.Context, client *mongo.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}
