package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

const subscriptionsCollection = "push_subscriptions"

// FirestoreStore implements push.SubscriptionStore using Google Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// subscriptionRecord is the internal DB representation.
type subscriptionRecord struct {
	UserID       string                  `firestore:"user_id"`
	Subscription push.SubscriptionRecord `firestore:"subscription"`
	UpdatedAt    time.Time               `firestore:"updated_at"`
}

// Save upserts by endpoint: the same device re-subscribing overwrites its
// previous keys, and its owner, instead of adding a row.
func (s *FirestoreStore) Save(ctx context.Context, user urn.URN, record push.SubscriptionRecord) error {
	doc := subscriptionRecord{
		UserID:       user.String(),
		Subscription: record,
		UpdatedAt:    time.Now(),
	}
	if _, err := s.subscriptionRef(record.Endpoint).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// Remove deletes by endpoint inside a transaction so a device claimed by
// another user in the meantime is left alone.
func (s *FirestoreStore) Remove(ctx context.Context, user urn.URN, endpoint string) error {
	ref := s.subscriptionRef(endpoint)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var record subscriptionRecord
		if err := snap.DataTo(&record); err != nil {
			return err
		}
		if record.UserID != user.String() {
			return nil
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}
	return nil
}

func (s *FirestoreStore) List(ctx context.Context, user urn.URN) ([]push.SubscriptionRecord, error) {
	iter := s.client.Collection(subscriptionsCollection).Where("user_id", "==", user.String()).Documents(ctx)
	defer iter.Stop()

	records := make([]push.SubscriptionRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record subscriptionRecord
		if err := doc.DataTo(&record); err != nil {
			// Skip corrupt rows rather than failing the whole listing.
			continue
		}
		records = append(records, record.Subscription)
	}
	return records, nil
}

func (s *FirestoreStore) Owner(ctx context.Context, endpoint string) (urn.URN, bool, error) {
	var none urn.URN
	snap, err := s.subscriptionRef(endpoint).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return none, false, nil
	}
	if err != nil {
		return none, false, fmt.Errorf("failed to read subscription owner: %w", err)
	}
	var record subscriptionRecord
	if err := snap.DataTo(&record); err != nil {
		return none, false, fmt.Errorf("failed to decode subscription: %w", err)
	}
	owner, err := urn.Parse(record.UserID)
	if err != nil {
		return none, false, fmt.Errorf("stored owner %q is not a urn: %w", record.UserID, err)
	}
	return owner, true, nil
}

// subscriptionRef: push_subscriptions/{endpointHash}
func (s *FirestoreStore) subscriptionRef(endpoint string) *firestore.DocumentRef {
	return s.client.Collection(subscriptionsCollection).Doc(hashEndpoint(endpoint))
}

// Endpoint URLs contain slashes, so they are hashed into document IDs.
func hashEndpoint(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}
