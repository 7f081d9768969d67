package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// ErrOperatorNotFound is returned when no operator has the given username.
var ErrOperatorNotFound = errors.New("operator not found")

// OperatorCollection defines the operator account operations
type OperatorCollection interface {
	FindOperator(ctx context.Context, username string) (*models.Operator, error)
	UpsertOperator(ctx context.Context, op models.Operator) error
	UpdateLastLogin(ctx context.Context, username string) error
}

// MongoOperatorCollection implements OperatorCollection for MongoDB
type MongoOperatorCollection struct {
	Collection *mongo.Collection
}

// FindOperator finds an operator by username
func (c *MongoOperatorCollection) FindOperator(ctx context.Context, username string) (*models.Operator, error) {
	var op models.Operator
	err := c.Collection.FindOne(ctx, bson.M{"username": username}).Decode(&op)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// UpsertOperator creates the operator or replaces its role and password
func (c *MongoOperatorCollection) UpsertOperator(ctx context.Context, op models.Operator) error {
	now := time.Now()
	_, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"username": op.Username},
		bson.M{
			"$set": bson.M{
				"password_hash": op.PasswordHash,
				"role":          op.Role,
				"is_active":     op.IsActive,
				"updated_at":    now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// UpdateLastLogin updates the last login time for an operator
func (c *MongoOperatorCollection) UpdateLastLogin(ctx context.Context, username string) error {
	now := time.Now()
	_, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"last_login": now, "updated_at": now}},
	)
	return err
}

// MemoryOperatorCollection keeps operators in process. It backs the API when
// no database is configured.
type MemoryOperatorCollection struct {
	mu  sync.RWMutex
	ops map[string]models.Operator
}

func NewMemoryOperatorCollection(ops ...models.Operator) *MemoryOperatorCollection {
	c := &MemoryOperatorCollection{ops: make(map[string]models.Operator)}
	for _, op := range ops {
		c.ops[op.Username] = op
	}
	return c
}

func (c *MemoryOperatorCollection) FindOperator(_ context.Context, username string) (*models.Operator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	op, ok := c.ops[username]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return &op, nil
}

func (c *MemoryOperatorCollection) UpsertOperator(_ context.Context, op models.Operator) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if existing, ok := c.ops[op.Username]; ok {
		op.CreatedAt = existing.CreatedAt
	} else {
		op.CreatedAt = now
	}
	op.UpdatedAt = now
	c.ops[op.Username] = op
	return nil
}

func (c *MemoryOperatorCollection) UpdateLastLogin(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[username]
	if !ok {
		return ErrOperatorNotFound
	}
	now := time.Now()
	op.LastLogin = &now
	op.UpdatedAt = now
	c.ops[username] = op
	return nil
}
