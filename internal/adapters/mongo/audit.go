package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/robertarktes/rail-booking/internal/workflow"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ActionTransition = "workflow.transition"
	ActionRejected   = "workflow.rejected"
)

// AuditLogger records booking workflow transitions.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	Session   string    `bson:"session"`
	Reference string    `bson:"booking_reference"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, session, reference string, at time.Time, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Session:   session,
		Reference: reference,
		Timestamp: at,
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

// Observe implements workflow.Observer. Audit failures never affect the
// workflow.
func (a *AuditLogger) Observe(ctx context.Context, ev workflow.Event) {
	action := ActionTransition
	data := map[string]interface{}{
		"from": ev.From.String(),
		"to":   ev.To.String(),
	}
	if ev.Rejected() {
		action = ActionRejected
		data["error"] = ev.Err.Error()
	}
	_ = a.LogEvent(context.WithoutCancel(ctx), action, ev.SessionKey, ev.Reference, ev.At, data)
}

func (a *AuditLogger) History(ctx context.Context, reference string) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"booking_reference": reference},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
