// Package docstore keeps projects and their transaction collections in a
// bbolt file, one nested bucket per project.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
const (
	BucketProjects           = "projects"
	BucketAdvances           = "advances"
	BucketContractors        = "contractors"
	BucketContractorPayments = "contractorPayments"
	BucketExpenses           = "expenses"
)

var projectKey = []byte("project")

var collections = []string{BucketAdvances, BucketContractors, BucketContractorPayments, BucketExpenses}

type Store struct {
	db *bolt.DB
}

// New opens the database file, creating its directory and the root bucket
// when missing.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketProjects)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketProjects, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so other components can share the file.
func (s *Store) DB() *bolt.DB {
	return s.db
}

func (s *Store) CreateProject(ctx context.Context, project ledger.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(BucketProjects))
		pb, err := root.CreateBucketIfNotExists(project.ID[:])
		if err != nil {
			return fmt.Errorf("failed to create project bucket: %w", err)
		}
		for _, name := range collections {
			if _, err := pb.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return putJSON(pb, projectKey, project)
	})
}

func (s *Store) GetProject(ctx context.Context, projectID uuid.UUID) (*ledger.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var project *ledger.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		pb := projectBucket(tx, projectID)
		if pb == nil {
			return nil
		}
		data := pb.Get(projectKey)
		if data == nil {
			return nil
		}
		project = &ledger.Project{}
		return json.Unmarshal(data, project)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	return project, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]ledger.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var projects []ledger.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(BucketProjects))
		return root.ForEachBucket(func(k []byte) error {
			data := root.Bucket(k).Get(projectKey)
			if data == nil {
				return nil
			}
			var project ledger.Project
			if err := json.Unmarshal(data, &project); err != nil {
				return err
			}
			projects = append(projects, project)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// UpdateProject applies fn to the stored project record inside a single
// write transaction.
func (s *Store) UpdateProject(ctx context.Context, projectID uuid.UUID, fn func(*ledger.Project)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		pb := projectBucket(tx, projectID)
		if pb == nil {
			return ledger.ErrNotFound
		}
		data := pb.Get(projectKey)
		if data == nil {
			return ledger.ErrNotFound
		}
		var project ledger.Project
		if err := json.Unmarshal(data, &project); err != nil {
			return fmt.Errorf("failed to decode project: %w", err)
		}
		fn(&project)
		return putJSON(pb, projectKey, project)
	})
}

func projectBucket(tx *bolt.Tx, projectID uuid.UUID) *bolt.Bucket {
	return tx.Bucket([]byte(BucketProjects)).Bucket(projectID[:])
}

// collection returns the named sub-collection of a project, or nil when the
// project does not exist.
func collection(tx *bolt.Tx, projectID uuid.UUID, name string) *bolt.Bucket {
	pb := projectBucket(tx, projectID)
	if pb == nil {
		return nil
	}
	return pb.Bucket([]byte(name))
}

func (s *Store) put(ctx context.Context, projectID, id uuid.UUID, name string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := collection(tx, projectID, name)
		if b == nil {
			return ledger.ErrNotFound
		}
		return putJSON(b, id[:], value)
	})
}

// get decodes a single document into value and reports whether it existed.
func (s *Store) get(ctx context.Context, projectID, id uuid.UUID, name string, value any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := collection(tx, projectID, name)
		if b == nil {
			return nil
		}
		data := b.Get(id[:])
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, value)
	})
	return found, err
}

func (s *Store) delete(ctx context.Context, projectID, id uuid.UUID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := collection(tx, projectID, name)
		if b == nil {
			return nil
		}
		return b.Delete(id[:])
	})
}

// list calls fn with every document of a collection. The byte slice is only
// valid inside fn.
func (s *Store) list(ctx context.Context, projectID uuid.UUID, name string, fn func(data []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		b := collection(tx, projectID, name)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			return fn(v)
		})
	})
}

func putJSON(b *bolt.Bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return b.Put(key, data)
}
