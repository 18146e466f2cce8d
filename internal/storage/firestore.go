package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/hanko-field/miniapp/internal/platform/firestore"
)

type firestoreRecord struct {
	Namespace string    `firestore:"namespace"`
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Firestore stores one document per namespaced key in a collection.
type Firestore struct {
	provider   *pfirestore.Provider
	collection string
	namespace  string
}

// NewFirestore returns a Store backed by provider. The client is dialled on first use.
func NewFirestore(provider *pfirestore.Provider, collection, namespace string) *Firestore {
	return &Firestore{provider: provider, collection: collection, namespace: namespace}
}

func (f *Firestore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := f.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	// Document IDs may not contain slashes.
	id := strings.ReplaceAll(namespacedKey(f.namespace, key), "/", "_")
	return client.Collection(f.collection).Doc(id), nil
}

func (f *Firestore) Get(ctx context.Context, key string) ([]byte, error) {
	ref, err := f.doc(ctx, key)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		err = pfirestore.WrapError("storage.firestore.get", err)
		if pfirestore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var record firestoreRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return []byte(record.Value), nil
}

func (f *Firestore) Set(ctx context.Context, key string, value []byte) error {
	ref, err := f.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, firestoreRecord{
		Namespace: f.namespace,
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC(),
	})
	return pfirestore.WrapError("storage.firestore.set", err)
}

func (f *Firestore) Delete(ctx context.Context, key string) error {
	ref, err := f.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return pfirestore.WrapError("storage.firestore.delete", err)
}

func (f *Firestore) Close() error { return f.provider.Close() }
