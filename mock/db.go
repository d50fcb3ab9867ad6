// Package mock is an in-process Siltstone server for tests and local
// development. It implements the one-shot query endpoint for a small
// expression subset and the streaming endpoint with live change
// notifications.
package mock

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone/wire"
	"golang.org/x/exp/maps"
	"time"
)

// Document is a stored document
type Document struct {
	Key        string // Collection + "/" + ID
	Collection string
	ID         string
	Data       map[string]any
	TS         wire.Timestamp
}

// Collection is a named document collection
type Collection struct {
	Name string
	TS   wire.Timestamp
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"documents": {
			Name: "documents",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
				"collection": {
					Name:    "collection",
					Indexer: &memdb.StringFieldIndex{Field: "Collection"},
				},
			},
		},
		"collections": {
			Name: "collections",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
	},
}

// DB is the document store behind the mock server.
//
// Every mutation is stamped with a strictly increasing transaction time.
// Watch methods use memdb watch channels to block until relevant changes
// land.
type DB struct {
	db *memdb.MemDB

	mu     sync.Mutex
	lastTS wire.Timestamp
	nextID int64
}

// NewDB creates an empty store
func NewDB() *DB {
	return &DB{db: must.OK1(memdb.NewMemDB(schema))}
}

// tick returns a fresh transaction time, strictly after all previous ones.
// Call with mu held.
func (d *DB) tick() wire.Timestamp {
	ts := wire.TimestampOf(time.Now())
	if ts <= d.lastTS {
		ts = d.lastTS + 1
	}
	d.lastTS = ts
	return ts
}

// LastTS returns the transaction time of the latest mutation
func (d *DB) LastTS() wire.Timestamp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastTS
}

// Now returns the current transaction time without consuming one
func (d *DB) Now() wire.Timestamp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastTS.Max(wire.TimestampOf(time.Now()))
}

// CreateCollection creates a collection
func (d *DB) CreateCollection(name string) (Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	txn := d.db.Txn(true)
	defer txn.Abort()
	if existing := must.OK1(txn.First("collections", "id", name)); existing != nil {
		return Collection{}, fmt.Errorf("collection %q already exists", name)
	}
	collection := Collection{Name: name, TS: d.tick()}
	must.OK(txn.Insert("collections", collection))
	txn.Commit()
	return collection, nil
}

// CreateDocument creates a document with a fresh ID in the collection
func (d *DB) CreateDocument(collection string, data map[string]any) (Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	txn := d.db.Txn(true)
	defer txn.Abort()
	if existing := must.OK1(txn.First("collections", "id", collection)); existing == nil {
		return Document{}, fmt.Errorf("collection %q does not exist", collection)
	}
	d.nextID++
	doc := Document{
		Collection: collection,
		ID:         strconv.FormatInt(d.nextID, 10),
		Data:       data,
		TS:         d.tick(),
	}
	doc.Key = doc.Collection + "/" + doc.ID
	must.OK(txn.Insert("documents", doc))
	txn.Commit()
	return doc, nil
}

// UpdateDocument merges the given data into the document, key by key
func (d *DB) UpdateDocument(collection, id string, data map[string]any) (Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	txn := d.db.Txn(true)
	defer txn.Abort()
	raw := must.OK1(txn.First("documents", "id", collection+"/"+id))
	if raw == nil {
		return Document{}, fmt.Errorf("document %s/%s does not exist", collection, id)
	}
	doc := raw.(Document)
	merged := maps.Clone(doc.Data)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, data)
	doc.Data = merged
	doc.TS = d.tick()
	must.OK(txn.Insert("documents", doc))
	txn.Commit()
	return doc, nil
}

// DeleteDocument removes the document and returns its last state
func (d *DB) DeleteDocument(collection, id string) (Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	txn := d.db.Txn(true)
	defer txn.Abort()
	raw := must.OK1(txn.First("documents", "id", collection+"/"+id))
	if raw == nil {
		return Document{}, fmt.Errorf("document %s/%s does not exist", collection, id)
	}
	must.OK(txn.Delete("documents", raw))
	d.tick()
	txn.Commit()
	return raw.(Document), nil
}

// GetDocument returns the document, if it exists
func (d *DB) GetDocument(collection, id string) (Document, bool) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw := must.OK1(txn.First("documents", "id", collection+"/"+id))
	if raw == nil {
		return Document{}, false
	}
	return raw.(Document), true
}

// ListDocuments returns all documents of a collection
func (d *DB) ListDocuments(collection string) []Document {
	txn := d.db.Txn(false)
	defer txn.Abort()
	var res []Document
	it := must.OK1(txn.Get("documents", "collection", collection))
	for raw := it.Next(); raw != nil; raw = it.Next() {
		res = append(res, raw.(Document))
	}
	return res
}

// WatchDocument blocks until the document changes past the given transaction
// time, then returns its new state. The second return value is false if the
// change was a deletion. The existed flag tells whether the caller has seen
// the document alive; without it a deletion racing the first poll would look
// like a document that was never there.
//
// Returns the context error if the context closes while waiting.
func (d *DB) WatchDocument(ctx context.Context, collection, id string, after wire.Timestamp, existed bool) (Document, bool, error) {
	key := collection + "/" + id
	for {
		txn := d.db.Txn(false)
		watch, raw, err := txn.FirstWatch("documents", "id", key)
		txn.Abort()
		must.OK(err)

		if raw != nil {
			doc := raw.(Document)
			if doc.TS > after {
				return doc, true, nil
			}
			existed = true
		} else if existed {
			return Document{}, false, nil
		}

		ws := memdb.NewWatchSet()
		ws.Add(watch)
		if err := ws.WatchCtx(ctx); err != nil {
			return Document{}, false, err
		}
	}
}

// WatchCollection blocks until any document of the collection changes past
// the given transaction time, then returns the changed documents.
//
// Returns the context error if the context closes while waiting.
func (d *DB) WatchCollection(ctx context.Context, collection string, after wire.Timestamp) ([]Document, error) {
	for {
		txn := d.db.Txn(false)
		it, err := txn.Get("documents", "collection", collection)
		must.OK(err)
		var changed []Document
		for raw := it.Next(); raw != nil; raw = it.Next() {
			if doc := raw.(Document); doc.TS > after {
				changed = append(changed, doc)
			}
		}
		watch := it.WatchCh()
		txn.Abort()
		if len(changed) > 0 {
			return changed, nil
		}

		ws := memdb.NewWatchSet()
		ws.Add(watch)
		if err := ws.WatchCtx(ctx); err != nil {
			return nil, err
		}
	}
}
