package stats

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/log"
	"strconv"
)

type dynamoDbStore struct {
	dynamoDb *dynamodb.Client
	table    *string
	log      log.Logger
}

func newDynamoDb(ctx context.Context, conf *config.DynamoDbConfig, telemetryReporter telemetry.Reporter, log log.Logger) (Store, error) {
	awsCtx, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Errorf("couldn't read aws config for DynamoDB: %s", err)
		return nil, err
	}
	telemetryReporter.InstrumentAws(&awsCtx)
	var opts []func(*dynamodb.Options)
	if conf.Url != "" {
		opts = append(opts, func(options *dynamodb.Options) {
			options.BaseEndpoint = aws.String(conf.Url)
		})
	}
	log.Reportf("using DynamoDB for visit counters")
	return &dynamoDbStore{
		dynamoDb: dynamodb.NewFromConfig(awsCtx, opts...),
		table:    aws.String(conf.Table),
		log:      log,
	}, nil
}

func (d *dynamoDbStore) Increment(ctx context.Context, key string) error {
	_, err := d.dynamoDb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: d.table,
		Key: map[string]types.AttributeValue{
			keyName: &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression:         aws.String("ADD #c :inc"),
		ExpressionAttributeNames: map[string]string{"#c": countName},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}

func (d *dynamoDbStore) Get(ctx context.Context, key string) (int64, error) {
	res, err := d.dynamoDb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: d.table,
		Key: map[string]types.AttributeValue{
			keyName: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, err
	}
	count, ok := res.Item[countName]
	if !ok {
		return 0, nil
	}
	switch v := count.(type) {
	case *types.AttributeValueMemberN:
		return strconv.ParseInt(v.Value, 10, 64)
	default:
		return 0, fmt.Errorf("invalid item under key '%s'", key)
	}
}

func (d *dynamoDbStore) Shutdown() {
	d.log.Reportf("shutdown complete")
}
