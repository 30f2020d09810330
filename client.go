package ddbload

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// BatchWriteAPI is the part of *dynamodb.Client used by bulk writes.
type BatchWriteAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// BatchGetAPI is the part of *dynamodb.Client used by bulk reads.
type BatchGetAPI interface {
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

type BatchAPI interface {
	BatchWriteAPI
	BatchGetAPI
}

type QueryAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type ScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DefaultRegion is used when neither the option nor the environment names one.
const DefaultRegion = "us-east-1"

// ClientKey identifies a cached client.
type ClientKey struct {
	AccountID string
	Region    string
}

type ClientOption struct {
	// Local is a DynamoDB Local endpoint, with or without scheme.
	Local     string
	Region    string
	AccountID string
	// RoleARN, when set, is assumed through STS for every call.
	RoleARN     string
	SessionName string
}

func (o *ClientOption) key() ClientKey {
	return ClientKey{AccountID: o.AccountID, Region: o.Region}
}

// ClientRegistry builds DynamoDB clients lazily and hands out one per
// account and region. It is safe for concurrent use.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[ClientKey]*dynamodb.Client
	logger  *zap.Logger
}

func NewClientRegistry(logger *zap.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: map[ClientKey]*dynamodb.Client{},
		logger:  orDefaultLogger(logger),
	}
}

// Register stores a client built elsewhere under key.
func (r *ClientRegistry) Register(key ClientKey, client *dynamodb.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[key] = client
}

// Client returns the cached client for opt, building it on first use.
func (r *ClientRegistry) Client(ctx context.Context, opt *ClientOption) (*dynamodb.Client, error) {
	if opt == nil {
		opt = &ClientOption{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := opt.key()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	cfg, err := loadConfig(ctx, opt)
	if err != nil {
		return nil, err
	}
	c := dynamodb.NewFromConfig(cfg)
	r.clients[key] = c

	r.logger.Debug("dynamodb client created",
		zap.String("account-id", key.AccountID),
		zap.String("region", cfg.Region),
		zap.Bool("local", opt.Local != ""),
		zap.Bool("assume-role", opt.RoleARN != ""))

	return c, nil
}

func checkAndFixURLSchema(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}

	return "http://" + endpoint
}

func loadConfig(ctx context.Context, opt *ClientOption) (aws.Config, error) {
	var optFns []func(*config.LoadOptions) error

	if opt.Region != "" {
		optFns = append(optFns, config.WithRegion(opt.Region))
	}

	if opt.Local != "" {
		endpoint := checkAndFixURLSchema(opt.Local)
		optFns = append(optFns, config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "unable to load SDK config")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	if opt.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), opt.RoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				if opt.SessionName != "" {
					o.RoleSessionName = opt.SessionName
				}
			})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}
