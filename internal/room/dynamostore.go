package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"room-router-backend/internal/database"
	"room-router-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore keeps the room map in a DynamoDB table, one item per room.
// Save diffs the snapshot against the last persisted state and writes only
// the changed items: a single create or delete costs one PutItem or
// DeleteItem call, larger diffs go through one batch write.
type DynamoStore struct {
	db    *database.Database
	table string

	mu   sync.Mutex
	prev map[string]model.RoomItem
}

func NewDynamoStore(db *database.Database, table string) *DynamoStore {
	if table == "" {
		table = model.RoomsTable
	}
	return &DynamoStore{db: db, table: table}
}

func (s *DynamoStore) Load() (map[string]Room, error) {
	ctx := context.Background()
	items, err := s.db.Client.ScanAll(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("dynamostore: scan rooms: %w", err)
	}

	rooms := make(map[string]Room, len(items))
	prev := make(map[string]model.RoomItem, len(items))
	for _, raw := range items {
		var item model.RoomItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("dynamostore: unmarshal room item: %w", err)
		}
		rm, err := itemToRoom(item)
		if err != nil {
			return nil, err
		}
		rooms[rm.ID] = rm
		prev[item.RoomID] = item
	}

	s.mu.Lock()
	s.prev = prev
	s.mu.Unlock()
	return rooms, nil
}

func (s *DynamoStore) Save(rooms map[string]Room) error {
	next := make(map[string]model.RoomItem, len(rooms))
	for _, rm := range rooms {
		next[rm.ID] = roomToItem(rm)
	}

	s.mu.Lock()
	prev := s.prev
	s.mu.Unlock()

	puts, deletes := diffItems(prev, next)
	if err := s.write(puts, deletes); err != nil {
		return err
	}

	s.mu.Lock()
	s.prev = next
	s.mu.Unlock()
	return nil
}

func (s *DynamoStore) write(puts []model.RoomItem, deletes []string) error {
	ctx := context.Background()

	switch {
	case len(puts) == 0 && len(deletes) == 0:
		return nil
	case len(puts) == 1 && len(deletes) == 0:
		if err := s.db.Client.PutItem(ctx, s.table, puts[0]); err != nil {
			return fmt.Errorf("dynamostore: put room %s: %w", puts[0].RoomID, err)
		}
		return nil
	case len(puts) == 0 && len(deletes) == 1:
		if err := s.db.Client.DeleteItem(ctx, s.table, roomKey(deletes[0])); err != nil {
			return fmt.Errorf("dynamostore: delete room %s: %w", deletes[0], err)
		}
		return nil
	}

	putItems := make([]interface{}, 0, len(puts))
	for _, item := range puts {
		putItems = append(putItems, item)
	}
	deleteKeys := make([]map[string]types.AttributeValue, 0, len(deletes))
	for _, id := range deletes {
		deleteKeys = append(deleteKeys, roomKey(id))
	}
	if err := s.db.Client.BatchWriteItem(ctx, s.table, putItems, deleteKeys); err != nil {
		return fmt.Errorf("dynamostore: write rooms: %w", err)
	}
	return nil
}

// diffItems reports which items must be written and which removed to move
// the table from prev to next. With a nil prev everything counts as new.
func diffItems(prev, next map[string]model.RoomItem) (puts []model.RoomItem, deletes []string) {
	for id, item := range next {
		if old, ok := prev[id]; !ok || old != item {
			puts = append(puts, item)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			deletes = append(deletes, id)
		}
	}
	return puts, deletes
}

func roomKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"roomId": &types.AttributeValueMemberS{Value: id},
	}
}

func roomToItem(rm Room) model.RoomItem {
	return model.RoomItem{
		RoomID:      rm.ID,
		Name:        rm.Name,
		Description: rm.Description,
		CreatedBy:   rm.CreatedBy,
		CreatedAt:   rm.CreatedAt.Format(time.RFC3339Nano),
		RoutingKey:  rm.RoutingKey,
	}
}

func itemToRoom(item model.RoomItem) (Room, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("dynamostore: parse createdAt for %s: %w", item.RoomID, err)
	}
	return Room{
		ID:          item.RoomID,
		Name:        item.Name,
		Description: item.Description,
		CreatedBy:   item.CreatedBy,
		CreatedAt:   createdAt,
		RoutingKey:  item.RoutingKey,
	}, nil
}
