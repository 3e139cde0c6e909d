//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-push-subscription/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

func setupSuite(t *testing.T) (context.Context, *fs.FirestoreStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-push-subscriptions"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewFirestoreStore(client)
}

func TestSubscriptionStore_Integration(t *testing.T) {
	ctx, store := setupSuite(t)
	userURN, err := urn.Parse("urn:practice:user:" + uuid.NewString())
	require.NoError(t, err)

	record := push.SubscriptionRecord{
		Endpoint: "https://fcm.googleapis.com/fcm/send/abc-123",
		Keys: push.Keys{
			P256dh: []byte{0xDE, 0xAD, 0xBE, 0xEF},
			Auth:   []byte{0xCA, 0xFE, 0xBA, 0xBE},
		},
	}

	t.Run("Save is an upsert keyed by endpoint", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, userURN, record))

		rotated := record
		rotated.Keys.Auth = []byte{0x01, 0x02}
		require.NoError(t, store.Save(ctx, userURN, rotated))

		records, err := store.List(ctx, userURN)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, rotated, records[0])
	})

	t.Run("Remove deletes and is idempotent", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, userURN, record.Endpoint))
		require.NoError(t, store.Remove(ctx, userURN, record.Endpoint))

		records, err := store.List(ctx, userURN)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestSubscriptionStore_EndpointHasOneOwner(t *testing.T) {
	ctx, store := setupSuite(t)
	clinician, err := urn.Parse("urn:practice:user:" + uuid.NewString())
	require.NoError(t, err)
	patient, err := urn.Parse("urn:practice:user:" + uuid.NewString())
	require.NoError(t, err)

	record := push.SubscriptionRecord{
		Endpoint: "https://fcm.googleapis.com/fcm/send/shared-" + uuid.NewString(),
		Keys: push.Keys{
			P256dh: []byte{0x04, 0x01},
			Auth:   []byte{0x02},
		},
	}

	t.Run("Saving under a second user moves the endpoint", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, clinician, record))
		require.NoError(t, store.Save(ctx, patient, record))

		clinicianRecords, err := store.List(ctx, clinician)
		require.NoError(t, err)
		assert.Empty(t, clinicianRecords)

		patientRecords, err := store.List(ctx, patient)
		require.NoError(t, err)
		assert.Len(t, patientRecords, 1)

		owner, ok, err := store.Owner(ctx, record.Endpoint)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, patient.String(), owner.String())
	})

	t.Run("Former owner cannot remove it", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, clinician, record.Endpoint))

		_, ok, err := store.Owner(ctx, record.Endpoint)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Current owner removes it", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, patient, record.Endpoint))

		_, ok, err := store.Owner(ctx, record.Endpoint)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
