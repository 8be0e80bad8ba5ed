package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/raulk/clock"
	"github.com/samber/mo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sagekit/db"
	lib "sagekit/lib/sagemaker"
	"sagekit/redis"
	"sagekit/resource"
	"sagekit/s3"
	"sagekit/sagemaker"
)

type SessionArgs struct {
	s3.S3Args               `json:"s3_._s3_args"`
	sagemaker.SagemakerArgs `json:"sagemaker_._sagemaker_args"`

	Project       string `arg:"--project,env:SAGEKIT_PROJECT" default:"sagekit" json:"project,omitempty"`
	DefaultBucket string `arg:"--default-bucket,env:SAGEKIT_DEFAULT_BUCKET,help:bucket for uploaded data and model artifacts, derived from the account when empty" json:"default_bucket,omitempty"`
	Dev           bool   `arg:"--dev" default:"true" json:"dev,omitempty"`

	LedgerPath    string `arg:"--ledger-path,env:SAGEKIT_LEDGER_PATH,help:sqlite file recording jobs and endpoints" json:"ledger_path,omitempty"`
	MysqlHost     string `arg:"--mysql-host,env:MYSQL_SERVER_ADDRESS" json:"mysql_host,omitempty"`
	MysqlDB       string `arg:"--mysql-db,env:MYSQL_DATABASE_NAME" json:"mysql_db,omitempty"`
	MysqlUsername string `arg:"--mysql-user,env:MYSQL_USERNAME" json:"mysql_username,omitempty"`
	MysqlPassword string `arg:"--mysql-password,env:MYSQL_PASSWORD" json:"mysql_password,omitempty"`
	RedisServer   string `arg:"--redis-server,env:REDIS_SERVER_ADDRESS" json:"redis_server,omitempty"`
}

// Valid reports every missing or conflicting field at once.
func (args SessionArgs) Valid() error {
	missingFields := make([]string, 0)
	if args.Region == "" {
		missingFields = append(missingFields, "AWS_REGION")
	}
	if args.SagemakerExecutionRole == "" {
		missingFields = append(missingFields, "SAGEMAKER_EXECUTION_ROLE")
	}
	if args.MysqlHost != "" {
		if args.MysqlDB == "" {
			missingFields = append(missingFields, "MYSQL_DATABASE_NAME")
		}
		if args.MysqlUsername == "" {
			missingFields = append(missingFields, "MYSQL_USERNAME")
		}
		if args.MysqlPassword == "" {
			missingFields = append(missingFields, "MYSQL_PASSWORD")
		}
	}
	if len(missingFields) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missingFields, ", "))
	}
	if args.MysqlHost != "" && args.LedgerPath != "" {
		return fmt.Errorf("only one of MYSQL_SERVER_ADDRESS and SAGEKIT_LEDGER_PATH can be set")
	}
	return nil
}

// Session carries everything estimators need to talk to the platform: the
// remote services, where to put data and which role jobs run as.
type Session struct {
	Region        string
	DefaultBucket string
	Role          string
	Scope         resource.Scope
	Platform      lib.Platform
	Storage       lib.ObjectStore
	Ledger        mo.Option[db.Connection]
	Redis         mo.Option[redis.Client]
	Clock         clock.Clock
	Logger        *zap.Logger
	Args          SessionArgs

	// stopStats ends the pool stats loop started by CreateFromArgs.
	stopStats *stopper
}

type stopper struct {
	once sync.Once
	done chan struct{}
}

func newStopper() *stopper {
	return &stopper{done: make(chan struct{})}
}

func (s *stopper) stop() {
	if s != nil {
		s.once.Do(func() { close(s.done) })
	}
}

func CreateFromArgs(args *SessionArgs) (sess Session, err error) {
	if err = args.Valid(); err != nil {
		return sess, err
	}
	scope := resource.NewScope(args.Project)

	log.Print("Creating logger")
	var logger *zap.Logger
	if args.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		logger, err = config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zap.ErrorLevel),
		)
	}
	if err != nil {
		return sess, fmt.Errorf("failed to construct logger: %v", err)
	}
	_ = zap.ReplaceGlobals(logger)
	logger = logger.With(zap.String("region", args.Region), zap.String("project", args.Project))

	if args.S3Region == "" {
		args.S3Region = args.Region
	}
	s3client := s3.NewClient(args.S3Args)
	bucket := args.DefaultBucket
	if bucket == "" {
		logger.Info("Looking up default bucket")
		bucket, err = defaultBucket(args.Region)
		if err != nil {
			return sess, err
		}
		if err = s3client.EnsureBucket(context.Background(), bucket, args.S3Region); err != nil {
			return sess, err
		}
	}

	var ledger mo.Option[db.Connection]
	var ledgerConfig resource.Config
	if args.MysqlHost != "" {
		logger.Info("Connecting to mysql")
		ledgerConfig = db.MySQLConfig{
			Host:     args.MysqlHost,
			DBname:   args.MysqlDB,
			Username: args.MysqlUsername,
			Password: args.MysqlPassword,
			TLS:      !args.Dev,
		}
	} else if args.LedgerPath != "" {
		logger.Info("Opening sqlite ledger", zap.String("path", args.LedgerPath))
		ledgerConfig = db.SQLiteConfig{Path: args.LedgerPath}
	}
	if ledgerConfig != nil {
		conn, err := ledgerConfig.Materialize(scope)
		if err != nil {
			return sess, fmt.Errorf("failed to open ledger: %v", err)
		}
		ledger = mo.Some(conn.(db.Connection))
	}

	var redisClient mo.Option[redis.Client]
	if args.RedisServer != "" {
		logger.Info("Connecting to redis")
		client, err := redis.ClientConfig{Addr: args.RedisServer}.Materialize(scope)
		if err != nil {
			return sess, fmt.Errorf("failed to create redis client: %v", err)
		}
		redisClient = mo.Some(client.(redis.Client))
	}

	clk := clock.New()
	stats := newStopper()
	go runPoolStats(clk, poolStatsInterval, stats.done, func() {
		if conn, ok := ledger.Get(); ok {
			db.RecordConnectionStats(conn.DB)
		}
		if c, ok := redisClient.Get(); ok {
			redis.RecordConnectionStats("redis", c)
		}
	})

	logger.Info("Creating sagemaker client")
	return Session{
		Region:        args.Region,
		DefaultBucket: bucket,
		Role:          args.SagemakerExecutionRole,
		Scope:         scope,
		Platform:      sagemaker.NewClient(args.SagemakerArgs, logger),
		Storage:       s3client,
		Ledger:        ledger,
		Redis:         redisClient,
		Clock:         clk,
		Logger:        logger,
		Args:          *args,
		stopStats:     stats,
	}, nil
}

const poolStatsInterval = 30 * time.Second

// runPoolStats calls sample right away and then every interval until done is
// closed.
func runPoolStats(clk clock.Clock, interval time.Duration, done <-chan struct{}, sample func()) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		sample()
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// defaultBucket returns sagemaker-<region>-<account id>, the bucket name the
// platform uses by convention.
func defaultBucket(region string) (string, error) {
	sess := awssession.Must(awssession.NewSession(&aws.Config{Region: aws.String(region)}))
	out, err := sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return fmt.Sprintf("sagemaker-%s-%s", region, aws.StringValue(out.Account)), nil
}

// DefaultOutputPath is where training jobs write artifacts unless an
// estimator sets its own output path.
func (s Session) DefaultOutputPath() string {
	return fmt.Sprintf("s3://%s/", s.DefaultBucket)
}

// NameFromBase returns a unique, timestamped job or model name.
func (s Session) NameFromBase(base string) string {
	return lib.NameFromBase(s.Clock, base)
}

// Close stops the pool stats loop before closing the ledger and redis
// client. It is safe to call more than once.
func (s Session) Close() error {
	s.stopStats.stop()
	if conn, ok := s.Ledger.Get(); ok {
		if err := conn.Close(); err != nil {
			return err
		}
	}
	if c, ok := s.Redis.Get(); ok {
		return c.Close()
	}
	return nil
}
