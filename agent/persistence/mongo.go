package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoGateway stores every table as a collection of the same name.
type MongoGateway struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Gateway = (*MongoGateway)(nil)

func OpenMongoGateway(ctx context.Context, cfg Config) (*MongoGateway, error) {
	uri := strings.TrimSpace(cfg.MongoURI)
	if uri == "" {
		return nil, fmt.Errorf("%w: DATABASE_MONGO_URI is required for mongo", ErrInvalidArgs)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(cfg.ConnTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoGateway(client, cfg.MongoDatabase), nil
}

func NewMongoGateway(client *mongo.Client, database string) *MongoGateway {
	if strings.TrimSpace(database) == "" {
		database = "sales_agent"
	}
	return &MongoGateway{client: client, db: client.Database(database)}
}

func (g *MongoGateway) Database() *mongo.Database { return g.db }

func (g *MongoGateway) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.client.Disconnect(ctx)
}

func (g *MongoGateway) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := requireKey("email", email); err != nil {
		return nil, err
	}
	return findOne[User](ctx, g.db.Collection(CollectionUsers), bson.M{"email": strings.TrimSpace(email)})
}

func (g *MongoGateway) FindUserBySessionID(ctx context.Context, sessionID string) (*User, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	return findOne[User](ctx, g.db.Collection(CollectionUsers), bson.M{"current_session.session_id": sessionID})
}

func (g *MongoGateway) UpsertUserSession(ctx context.Context, email string, cur CurrentSession) error {
	if err := requireKey("email", email); err != nil {
		return err
	}
	now := time.Now().UTC()
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = now
	}
	update := bson.M{"$set": bson.M{
		"email":           strings.TrimSpace(email),
		"current_session": cur,
		"last_session_id": cur.SessionID,
		"updated_at":      now,
	}}
	_, err := g.db.Collection(CollectionUsers).UpdateOne(ctx,
		bson.M{"email": strings.TrimSpace(email)}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (g *MongoGateway) UpdateUserSummary(ctx context.Context, email, sessionID, summary string) error {
	if err := requireKey("email", email); err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"email":           strings.TrimSpace(email),
		"recent_summary":  summary,
		"last_session_id": sessionID,
		"updated_at":      time.Now().UTC(),
	}}
	_, err := g.db.Collection(CollectionUsers).UpdateOne(ctx,
		bson.M{"email": strings.TrimSpace(email)}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (g *MongoGateway) InsertConversation(ctx context.Context, c *Conversation) error {
	if c == nil {
		return fmt.Errorf("%w: nil conversation", ErrInvalidArgs)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := g.db.Collection(CollectionConversations).InsertOne(ctx, c)
	return err
}

func (g *MongoGateway) ListConversation(ctx context.Context, sessionID string, limit int) ([]Conversation, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "turn_index", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := g.db.Collection(CollectionConversations).Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	var rows []Conversation
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	return rows, nil
}

func (g *MongoGateway) InsertOrder(ctx context.Context, o *Order) (string, error) {
	if o == nil {
		return "", fmt.Errorf("%w: nil order", ErrInvalidArgs)
	}
	if o.ID == "" {
		o.ID = bson.NewObjectID().Hex()
	}
	if _, err := g.db.Collection(CollectionOrders).InsertOne(ctx, o); err != nil {
		return "", err
	}
	return o.ID, nil
}

func (g *MongoGateway) FindOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := requireKey("order_id", orderID); err != nil {
		return nil, err
	}
	return findOne[Order](ctx, g.db.Collection(CollectionOrders), bson.M{"_id": orderID})
}

func (g *MongoGateway) UpsertSummary(ctx context.Context, s *ConversationSummary) error {
	if s == nil {
		return fmt.Errorf("%w: nil summary", ErrInvalidArgs)
	}
	if err := requireKey("session_id", s.SessionID); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	_, err := g.db.Collection(CollectionSummaries).UpdateOne(ctx,
		bson.M{"session_id": s.SessionID}, bson.M{"$set": s}, options.UpdateOne().SetUpsert(true))
	return err
}

func (g *MongoGateway) FindSummary(ctx context.Context, sessionID string) (*ConversationSummary, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	return findOne[ConversationSummary](ctx, g.db.Collection(CollectionSummaries), bson.M{"session_id": sessionID})
}

func (g *MongoGateway) InsertFailedWrite(ctx context.Context, f *FailedWrite) error {
	if f == nil {
		return fmt.Errorf("%w: nil failed write", ErrInvalidArgs)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := g.db.Collection(CollectionFailedWrites).InsertOne(ctx, f)
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	out := new(T)
	if err := coll.FindOne(ctx, filter).Decode(out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s %v", ErrNotFound, coll.Name(), filter)
		}
		return nil, err
	}
	return out, nil
}
