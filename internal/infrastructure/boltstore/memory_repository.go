// Package boltstore is the durable, single-file MemoryRepository backend:
// a bbolt key/value database with one bucket per aggregate, JSON-encoded
// records, and the same optimistic-concurrency and pagination semantics
// memstore exposes. Selected by StorageConfig.Backend == "bbolt" when a
// deployment needs data to survive a process restart without standing up
// an external store.
package boltstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/vector"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// DefaultPaginationMax bounds every List call's effective limit, matching
// memstore's cap so callers see identical pagination behavior regardless
// of backend.
const DefaultPaginationMax = 100

var memoriesBucket = []byte("memories")

// memoryRecord is the on-disk shape of a Memory. Memory's fields are
// private, so Reconstruct is the only way back in; this record exists to
// give encoding/json something to marshal.
type memoryRecord struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	UserID           string     `json:"user_id"`
	Kind             string     `json:"kind"`
	Source           string     `json:"source"`
	SourceID         string     `json:"source_id"`
	Content          string     `json:"content"`
	Gist             string     `json:"gist"`
	FullSummary      string     `json:"full_summary"`
	Keywords         []string   `json:"keywords"`
	Topics           []string   `json:"topics"`
	Tags             []string   `json:"tags"`
	Embedding        []float32  `json:"embedding"`
	Importance       float64    `json:"importance"`
	Confidence       float64    `json:"confidence"`
	ParentID         string     `json:"parent_id"`
	RelatedIDs       []string   `json:"related_ids"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	AccessedAt       time.Time  `json:"accessed_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Status           string     `json:"status"`
	Version          int        `json:"version"`
	PendingReindex   bool       `json:"pending_reindex"`
	PatternCandidate bool       `json:"pattern_candidate"`
}

func toRecord(m *memory.Memory) memoryRecord {
	return memoryRecord{
		ID:               m.ID().String(),
		TenantID:         m.TenantID().String(),
		UserID:           m.UserID(),
		Kind:             string(m.Kind()),
		Source:           string(m.Source()),
		SourceID:         m.SourceID(),
		Content:          m.Content(),
		Gist:             m.Gist(),
		FullSummary:      m.FullSummary(),
		Keywords:         m.Keywords(),
		Topics:           m.Topics(),
		Tags:             m.Tags(),
		Embedding:        m.Embedding(),
		Importance:       m.Importance(),
		Confidence:       m.Confidence(),
		ParentID:         m.ParentID(),
		RelatedIDs:       m.RelatedIDs(),
		CreatedAt:        m.CreatedAt(),
		UpdatedAt:        m.UpdatedAt(),
		AccessedAt:       m.AccessedAt(),
		ExpiresAt:        m.ExpiresAt(),
		Status:           string(m.Status()),
		Version:          m.Version(),
		PendingReindex:   m.PendingReindex(),
		PatternCandidate: m.IsPatternCandidate(),
	}
}

func fromRecord(r memoryRecord) (*memory.Memory, error) {
	id, err := ids.NewMemoryIDFromString(r.ID)
	if err != nil {
		return nil, err
	}
	return memory.Reconstruct(
		id,
		ids.TenantID(r.TenantID),
		r.UserID,
		memory.Kind(r.Kind),
		memory.Source(r.Source),
		r.SourceID, r.Content, r.Gist, r.FullSummary,
		r.Keywords, r.Topics, r.Tags,
		vector.Embedding(r.Embedding),
		r.Importance, r.Confidence,
		r.ParentID, r.RelatedIDs,
		r.CreatedAt, r.UpdatedAt, r.AccessedAt,
		r.ExpiresAt,
		memory.Status(r.Status),
		r.Version,
		r.PendingReindex, r.PatternCandidate,
	), nil
}

// MemoryRepository is the bbolt-backed MemoryRepository. Every record
// lives in a single "memories" bucket, keyed by "<tenant>/<id>"; list-ish
// queries scan the bucket rather than maintain secondary indexes, which
// is the right tradeoff at the data volumes a single-tenant bbolt file is
// meant for.
type MemoryRepository struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database at path and prepares
// the memories bucket.
func Open(path string) (*MemoryRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, pkgerrors.NewBackend("failed to open bbolt database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(memoriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, pkgerrors.NewBackend("failed to create memories bucket", err)
	}
	return &MemoryRepository{db: db}, nil
}

// Close releases the underlying file handle and its lock.
func (r *MemoryRepository) Close() error {
	return r.db.Close()
}

func memoryKey(tenantID ids.TenantID, id string) []byte {
	return []byte(tenantID.String() + "/" + id)
}

func (r *MemoryRepository) Create(_ context.Context, m *memory.Memory) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(memoriesBucket)
		key := memoryKey(m.TenantID(), m.ID().String())
		if b.Get(key) != nil {
			return pkgerrors.NewConflict("memory already exists")
		}
		data, err := json.Marshal(toRecord(m))
		if err != nil {
			return pkgerrors.NewInternal("failed to encode memory", err)
		}
		return b.Put(key, data)
	})
}

func (r *MemoryRepository) Get(_ context.Context, tenantID ids.TenantID, id ids.MemoryID) (*memory.Memory, error) {
	var m *memory.Memory
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(memoriesBucket)
		data := b.Get(memoryKey(tenantID, id.String()))
		if data == nil {
			return pkgerrors.NewNotFound("memory not found")
		}
		var rec memoryRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return pkgerrors.NewInternal("failed to decode memory", err)
		}
		reconstructed, err := fromRecord(rec)
		if err != nil {
			return err
		}
		m = reconstructed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update enforces the same optimistic-concurrency check as memstore: the
// stored version must equal the incoming aggregate's version minus one.
func (r *MemoryRepository) Update(_ context.Context, m *memory.Memory) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(memoriesBucket)
		key := memoryKey(m.TenantID(), m.ID().String())
		data := b.Get(key)
		if data == nil {
			return pkgerrors.NewNotFound("memory not found")
		}
		var existing memoryRecord
		if err := json.Unmarshal(data, &existing); err != nil {
			return pkgerrors.NewInternal("failed to decode memory", err)
		}
		if existing.Version != m.Version()-1 {
			return pkgerrors.NewConflict("memory was modified concurrently")
		}
		encoded, err := json.Marshal(toRecord(m))
		if err != nil {
			return pkgerrors.NewInternal("failed to encode memory", err)
		}
		return b.Put(key, encoded)
	})
}

func (r *MemoryRepository) Delete(_ context.Context, tenantID ids.TenantID, id ids.MemoryID) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(memoriesBucket)
		key := memoryKey(tenantID, id.String())
		if b.Get(key) == nil {
			return pkgerrors.NewNotFound("memory not found")
		}
		return b.Delete(key)
	})
}

// scan walks every record in the bucket belonging to tenantID, decoding
// each and handing it to keep; keep returning false skips the record.
func (r *MemoryRepository) scan(tenantID ids.TenantID, keep func(*memory.Memory) bool) ([]*memory.Memory, error) {
	var out []*memory.Memory
	prefix := []byte(tenantID.String() + "/")
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(memoriesBucket)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var rec memoryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return pkgerrors.NewInternal("failed to decode memory", err)
			}
			m, err := fromRecord(rec)
			if err != nil {
				return err
			}
			if keep(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (r *MemoryRepository) List(_ context.Context, tenantID ids.TenantID, userID string, opts ports.ListOptions) ([]*memory.Memory, error) {
	matches, err := r.scan(tenantID, func(m *memory.Memory) bool {
		return userID == "" || m.UserID() == userID
	})
	if err != nil {
		return nil, err
	}
	sortMemories(matches, opts.OrderBy, opts.OrderDesc)
	return paginate(matches, opts.Offset, opts.Limit), nil
}

func (r *MemoryRepository) Count(_ context.Context, tenantID ids.TenantID) (int, error) {
	matches, err := r.scan(tenantID, func(*memory.Memory) bool { return true })
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func (r *MemoryRepository) FindBySourceID(_ context.Context, tenantID ids.TenantID, userID, sourceID string) (*memory.Memory, error) {
	if sourceID == "" {
		return nil, pkgerrors.NewNotFound("memory not found")
	}
	matches, err := r.scan(tenantID, func(m *memory.Memory) bool {
		return m.UserID() == userID && m.SourceID() == sourceID
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, pkgerrors.NewNotFound("memory not found")
	}
	return matches[0], nil
}

func (r *MemoryRepository) FindActive(_ context.Context, tenantID ids.TenantID, userID string) ([]*memory.Memory, error) {
	return r.scan(tenantID, func(m *memory.Memory) bool {
		if !m.IsActive() {
			return false
		}
		return userID == "" || m.UserID() == userID
	})
}

func (r *MemoryRepository) FindPendingReindex(_ context.Context, tenantID ids.TenantID) ([]*memory.Memory, error) {
	return r.scan(tenantID, func(m *memory.Memory) bool { return m.PendingReindex() })
}

func (r *MemoryRepository) FindExpired(_ context.Context, tenantID ids.TenantID, asOf time.Time) ([]*memory.Memory, error) {
	return r.scan(tenantID, func(m *memory.Memory) bool {
		exp := m.ExpiresAt()
		return exp != nil && !exp.After(asOf)
	})
}

func sortMemories(m []*memory.Memory, orderBy string, desc bool) {
	less := func(i, j int) bool {
		switch orderBy {
		case "importance":
			return m[i].Importance() < m[j].Importance()
		case "accessed_at":
			return m[i].AccessedAt().Before(m[j].AccessedAt())
		default:
			return m[i].CreatedAt().Before(m[j].CreatedAt())
		}
	}
	sort.Slice(m, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func paginate(items []*memory.Memory, offset, limit int) []*memory.Memory {
	if limit <= 0 || limit > DefaultPaginationMax {
		limit = DefaultPaginationMax
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*memory.Memory{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
