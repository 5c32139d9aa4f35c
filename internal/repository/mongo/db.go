package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// Default connection timeout
	defaultTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	appName = "fithero-planner"
)

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	// Bound the whole connection attempt
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	// Client options from the URI, tagged so the planner shows up in server logs
	clientOptions := options.Client().ApplyURI(uri).SetAppName(appName)

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary node. The initial connection can succeed against an
	// unresponsive server, so this gets its own shorter timeout.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), pingTimeout)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		// Ping failed: disconnect before handing back the error
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), pingTimeout)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx) // nothing useful to do with this error
		return nil, err
	}

	// Connection successful
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes every collection relies on. The unique
// indexes back the store's duplicate detection, so startup should not
// ignore a failure here.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return errors.Join(
		EnsureMonthlyPlanIndexes(ctx, db.Collection(monthlyPlanCollectionName)),
		EnsureDailySliceIndexes(ctx, db.Collection(dailySliceCollectionName)),
		EnsureAchievementIndexes(ctx, db.Collection(achievementCollectionName)),
		EnsureProgressIndexes(ctx, db.Collection(progressCollectionName)),
		EnsureActivityIndexes(ctx, db),
	)
}
