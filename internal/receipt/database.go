package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const processedBucketName = "processed_receipts"

// DB defines the interface for processing-history persistence
type DB interface {
	// SaveProcessed saves a processed receipt to the history
	SaveProcessed(processed *ProcessedReceipt) error

	// GetProcessed retrieves a processed receipt by ID
	GetProcessed(id string) (*ProcessedReceipt, error)

	// ListProcessed returns all processed receipts
	ListProcessed() ([]*ProcessedReceipt, error)

	// DeleteProcessed removes a processed receipt from the history
	DeleteProcessed(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(processedBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveProcessed saves a processed receipt to the history
func (b *BoltDB) SaveProcessed(processed *ProcessedReceipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucketName))
		data, err := json.Marshal(processed)
		if err != nil {
			return fmt.Errorf("marshaling processed receipt: %w", err)
		}
		return bucket.Put([]byte(processed.ID), data)
	})
}

// GetProcessed retrieves a processed receipt by ID
func (b *BoltDB) GetProcessed(id string) (*ProcessedReceipt, error) {
	var processed *ProcessedReceipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("processed receipt not found: %s", id)
		}
		return json.Unmarshal(data, &processed)
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}

// ListProcessed returns all processed receipts
func (b *BoltDB) ListProcessed() ([]*ProcessedReceipt, error) {
	processed := make([]*ProcessedReceipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var entry ProcessedReceipt
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling processed receipt: %w", err)
			}
			processed = append(processed, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}

// DeleteProcessed removes a processed receipt from the history
func (b *BoltDB) DeleteProcessed(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(processedBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
