package persistence

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
)

// RecordingRepository is the DynamoDB-backed client for the recording
// registry. Entries are keyed by (TenantId, Id) so lookups stay scoped to
// one tenant.
type RecordingRepository struct {
	db        *dynamodb.DynamoDB
	tableName string
}

func NewRecordingRepository(sess *session.Session, tableName string) *RecordingRepository {
	return &RecordingRepository{dynamodb.New(sess), tableName}
}

// GetById returns the recording for the given tenant, or nil when the
// registry has no such entry.
func (r *RecordingRepository) GetById(ctx context.Context, tenantID, id string) (*entity.Recording, error) {
	out, err := r.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		Key: map[string]*dynamodb.AttributeValue{
			"TenantId": {S: aws.String(tenantID)},
			"Id":       {S: aws.String(id)},
		},
		TableName: aws.String(r.tableName),
	})
	if err != nil || len(out.Item) == 0 {
		return nil, err
	}
	var recording *entity.Recording
	err = dynamodbattribute.UnmarshalMap(out.Item, &recording)
	return recording, err
}

// Save writes the recording entry to the registry.
func (r *RecordingRepository) Save(ctx context.Context, recording *entity.Recording) error {
	av, err := dynamodbattribute.MarshalMap(recording)
	if err != nil {
		return err
	}
	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		slog.Error("failed to save recording to registry", "recording", recording.Id, "error", err)
	}
	return err
}
