package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// record is one message document. History holds the message as JSON
// ({"type": ..., "data": {"content": ...}}) so collections written by the
// earlier Python service stay readable.
type record struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	SessionID string             `bson:"SessionId"`
	History   string             `bson:"History"`
	CreatedAt time.Time          `bson:"created_at,omitempty"`
}

type storedMessage struct {
	Type string `json:"type"`
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

// MongoStore keeps one document per message in a single collection.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func encodeMessage(m Message) (string, error) {
	var sm storedMessage
	sm.Type = m.Type
	sm.Data.Content = m.Content
	b, err := json.Marshal(sm)
	return string(b), err
}

func decodeMessage(history string) (Message, error) {
	var sm storedMessage
	if err := json.Unmarshal([]byte(history), &sm); err != nil {
		return Message{}, err
	}
	return Message{Type: sm.Type, Content: sm.Data.Content}, nil
}

// Append inserts msgs in order.
func (s *MongoStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(msgs))
	for i, m := range msgs {
		h, err := encodeMessage(m)
		if err != nil {
			return err
		}
		// keep insertion order visible in created_at
		docs = append(docs, record{SessionID: sessionID, History: h, CreatedAt: now.Add(time.Duration(i) * time.Microsecond)})
	}

	if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to store messages: %w", err)
	}
	return nil
}

// Messages returns the session's messages, oldest first.
func (s *MongoStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"SessionId": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer cursor.Close(ctx)

	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}

	sortRecords(records)

	msgs := make([]Message, 0, len(records))
	for _, r := range records {
		m, err := decodeMessage(r.History)
		if err != nil {
			return nil, fmt.Errorf("corrupt history entry %s: %w", r.ID.Hex(), err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// sortRecords orders records by the second encoded in _id. ObjectIDs only
// order to the second across clients, so within one second records without
// created_at (older writers) come first in _id order, then the rest by
// created_at.
func sortRecords(records []record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ta, tb := a.ID.Timestamp(), b.ID.Timestamp(); !ta.Equal(tb) {
			return ta.Before(tb)
		}
		if az, bz := a.CreatedAt.IsZero(), b.CreatedAt.IsZero(); az != bz {
			return az
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

func (s *MongoStore) SessionIDs(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "SessionId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteSession removes every message of sessionID and returns how many went.
func (s *MongoStore) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"SessionId": sessionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
