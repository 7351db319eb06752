package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariavasulin/YouLearn/internal/notebook"
)

// PassID names an enrichment pass.
type PassID string

const (
	PassVerify    PassID = "verify"
	PassNarrative PassID = "narrative"
)

// Passes lists every pass in trigger order.
var Passes = []PassID{PassVerify, PassNarrative}

// ParsePass validates a pass name.
func ParsePass(s string) (PassID, error) {
	for _, p := range Passes {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownPass)
}

// Cursor records the start time of a pass's last successful run. The zero
// LastRun means the pass has never completed.
type Cursor struct {
	PassID  PassID    `json:"pass_id"`
	LastRun time.Time `json:"last_run_timestamp"`
}

// CursorStore persists one cursor per pass. Load returns a zero cursor when
// none has been saved.
type CursorStore interface {
	Load(ctx context.Context, pass PassID) (Cursor, error)
	Save(ctx context.Context, c Cursor) error
}

// FileCursorStore keeps cursors as JSON files inside the document tree.
type FileCursorStore struct {
	tree *notebook.Tree
	dir  string
}

func NewFileCursorStore(tree *notebook.Tree, dir string) *FileCursorStore {
	if dir == "" {
		dir = ".state"
	}
	return &FileCursorStore{tree: tree, dir: dir}
}

func (s *FileCursorStore) path(pass PassID) string {
	return path.Join(s.dir, string(pass)+"-cursor.json")
}

func (s *FileCursorStore) Load(_ context.Context, pass PassID) (Cursor, error) {
	data, err := s.tree.Read(s.path(pass))
	if errors.Is(err, notebook.ErrNotFound) {
		return Cursor{PassID: pass}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return decodeCursor(pass, data)
}

func (s *FileCursorStore) Save(_ context.Context, c Cursor) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := s.tree.Write(s.path(c.PassID), append(data, '\n')); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// RedisCursorStore keeps cursors under notebook:cursor:<pass>, optionally
// namespaced per notebook.
type RedisCursorStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisCursorStore(client *redis.Client, namespace string) *RedisCursorStore {
	return &RedisCursorStore{client: client, namespace: namespace}
}

func (s *RedisCursorStore) key(pass PassID) string {
	if s.namespace == "" {
		return "notebook:cursor:" + string(pass)
	}
	return "notebook:" + s.namespace + ":cursor:" + string(pass)
}

func (s *RedisCursorStore) Load(ctx context.Context, pass PassID) (Cursor, error) {
	val, err := s.client.Get(ctx, s.key(pass)).Result()
	if errors.Is(err, redis.Nil) {
		return Cursor{PassID: pass}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return decodeCursor(pass, []byte(val))
}

func (s *RedisCursorStore) Save(ctx context.Context, c Cursor) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := s.client.Set(ctx, s.key(c.PassID), data, 0).Err(); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// MemoryCursorStore is an in-process store.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[PassID]Cursor
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[PassID]Cursor)}
}

func (s *MemoryCursorStore) Load(_ context.Context, pass PassID) (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cursors[pass]; ok {
		return c, nil
	}
	return Cursor{PassID: pass}, nil
}

func (s *MemoryCursorStore) Save(_ context.Context, c Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[c.PassID] = c
	return nil
}

func decodeCursor(pass PassID, data []byte) (Cursor, error) {
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	if c.PassID != pass {
		return Cursor{}, fmt.Errorf("cursor belongs to pass %q, not %q", c.PassID, pass)
	}
	return c, nil
}
