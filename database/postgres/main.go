package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"englishbuddy/logger"
)

type DatabaseConnectProps struct {
	Logger *logger.LogMiddleware
}

type Database struct {
	Queries
	logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args DatabaseConnectProps) *Database {
	tracer := otel.Tracer("postgres/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	connectRetries := 5
	var conn *sql.DB
	var err error
	var connStr string

	logger := args.Logger.Logger(ctx)

	for connectRetries > 0 {
		conn, err, connStr = getConnection(ctx)
		if err == nil {
			logger.Info("[Postgres] Database client started")
			break
		}
		connectRetries -= 1
		sleepTime := 5
		logger.Error(
			"[Postgres] Could not connect to Postgres. Retrying after sleeping.",
			zap.Error(err),
			zap.Int("Retries Left", connectRetries),
			zap.Int("Sleep Time", sleepTime),
			zap.String("Connection String", connStr))
		time.Sleep(time.Second * time.Duration(sleepTime))
	}

	if connectRetries <= 0 {
		logger.Error("[Postgres] Failed to Connect to Postgres")
		span.RecordError(fmt.Errorf("failed to connect to Postgres"))
		os.Exit(1)
	}

	queries := New(conn)
	return &Database{Queries: *queries, logger: args.Logger}
}

func getConnection(ctx context.Context) (*sql.DB, error, string) {
	tracer := otel.Tracer("postgres/getConnection")
	_, span := tracer.Start(ctx, "getConnection")
	defer span.End()

	host := os.Getenv("POSTGRES_DB_HOST")
	port := os.Getenv("POSTGRES_DB_PORT")
	user := os.Getenv("POSTGRES_DB_USER")
	password := os.Getenv("POSTGRES_DB_PASS")
	dbname := os.Getenv("POSTGRES_DB_NAME")

	sslMode := "disable"

	postgresqlDbInfo := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode,
	)

	db, err := sql.Open("postgres", postgresqlDbInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}
	err = db.Ping()
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}

	return db, nil, ""
}

// SaveUserInfoAndAdvance stores a basic/choice answer at its absolute question
// index and bumps the current question, as one transaction. A failure leaves
// both the answer and the index untouched.
func (d *Database) SaveUserInfoAndAdvance(ctx context.Context, username string, question int, info string) error {
	tracer := otel.Tracer("postgres/SaveUserInfoAndAdvance")
	ctx, span := tracer.Start(ctx, "SaveUserInfoAndAdvance")
	defer span.End()

	err := d.Queries.withTx(ctx, func(q *Queries) error {
		if err := q.SaveUserInfo(ctx, username, question, info); err != nil {
			return err
		}
		return q.UpdateCurrentQuestion(ctx, username, question+1)
	})
	if err != nil {
		d.logger.Logger(ctx).Error(
			"[Postgres] Could not save user info",
			zap.Error(err),
			zap.String("username", username),
			zap.Int("question", question),
		)
		span.RecordError(err)
		return fmt.Errorf("could not save user info: %w", err)
	}

	return nil
}

// SaveUserResponseAndAdvance stores an essay/audio answer at its local index
// and sets the current question, as one transaction.
func (d *Database) SaveUserResponseAndAdvance(ctx context.Context, username string, responseNumber int, response string, nextQuestion int) error {
	tracer := otel.Tracer("postgres/SaveUserResponseAndAdvance")
	ctx, span := tracer.Start(ctx, "SaveUserResponseAndAdvance")
	defer span.End()

	err := d.Queries.withTx(ctx, func(q *Queries) error {
		if err := q.SaveUserResponse(ctx, username, responseNumber, response); err != nil {
			return err
		}
		return q.UpdateCurrentQuestion(ctx, username, nextQuestion)
	})
	if err != nil {
		d.logger.Logger(ctx).Error(
			"[Postgres] Could not save user response",
			zap.Error(err),
			zap.String("username", username),
			zap.Int("response_number", responseNumber),
		)
		span.RecordError(err)
		return fmt.Errorf("could not save user response: %w", err)
	}

	return nil
}
