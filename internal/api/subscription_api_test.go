package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-push-subscription/internal/api"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

// --- Mocks ---
type MockSubscriptionStore struct {
	mock.Mock
}

func (m *MockSubscriptionStore) Save(ctx context.Context, u urn.URN, record push.SubscriptionRecord) error {
	return m.Called(ctx, u, record).Error(0)
}
func (m *MockSubscriptionStore) Remove(ctx context.Context, u urn.URN, endpoint string) error {
	return m.Called(ctx, u, endpoint).Error(0)
}
func (m *MockSubscriptionStore) List(ctx context.Context, u urn.URN) ([]push.SubscriptionRecord, error) {
	args := m.Called(ctx, u)
	return args.Get(0).([]push.SubscriptionRecord), args.Error(1)
}

func (m *MockSubscriptionStore) Owner(ctx context.Context, endpoint string) (urn.URN, bool, error) {
	args := m.Called(ctx, endpoint)
	return args.Get(0).(urn.URN), args.Bool(1), args.Error(2)
}

// --- Setup ---
func setupAPI(t *testing.T) (*api.SubscriptionAPI, *MockSubscriptionStore) {
	mockStore := new(MockSubscriptionStore)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewSubscriptionAPI(mockStore, "BPublicKey", logger), mockStore
}

func withUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

// --- Tests ---

func TestSubscribe(t *testing.T) {
	apiHandler, mockStore := setupAPI(t)
	targetURN, _ := urn.Parse("urn:practice:user:123")

	expected := push.SubscriptionRecord{
		Endpoint: "https://fcm.googleapis.com/fcm/send/xyz",
		Keys: push.Keys{
			P256dh: []byte{0xDE, 0xAD, 0xBE, 0xEF},
			Auth:   []byte{0xCA, 0xFE, 0xBA, 0xBE},
		},
	}

	t.Run("Success", func(t *testing.T) {
		body, _ := json.Marshal(webpush.Subscription{
			Endpoint: expected.Endpoint,
			Keys:     webpush.Keys{P256dh: "3q2+7w==", Auth: "yv66vg=="},
		})
		req := withUser(httptest.NewRequest("POST", "/push/subscribe", bytes.NewReader(body)), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("Save", mock.Anything, targetURN, expected).Return(nil).Once()

		apiHandler.Subscribe(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejects Missing Keys", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/push/subscribe", bytes.NewReader([]byte(`{"endpoint": "https://valid.com"}`))), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.Subscribe(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects Unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/push/subscribe", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()

		apiHandler.Subscribe(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Storage failure is 500", func(t *testing.T) {
		body, _ := json.Marshal(webpush.Subscription{
			Endpoint: "https://fcm.googleapis.com/fcm/send/other",
			Keys:     webpush.Keys{P256dh: "3q2+7w==", Auth: "yv66vg=="},
		})
		req := withUser(httptest.NewRequest("POST", "/push/subscribe", bytes.NewReader(body)), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("Save", mock.Anything, targetURN, mock.Anything).Return(assert.AnError).Once()

		apiHandler.Subscribe(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUnsubscribe(t *testing.T) {
	apiHandler, mockStore := setupAPI(t)
	targetURN, _ := urn.Parse("urn:practice:user:123")

	t.Run("Success", func(t *testing.T) {
		body := []byte(`{"endpoint": "https://fcm.googleapis.com/fcm/send/xyz"}`)
		req := withUser(httptest.NewRequest("POST", "/push/unsubscribe", bytes.NewReader(body)), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("Remove", mock.Anything, targetURN, "https://fcm.googleapis.com/fcm/send/xyz").Return(nil).Once()

		apiHandler.Unsubscribe(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejects Missing Endpoint", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/push/unsubscribe", bytes.NewReader([]byte(`{}`))), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.Unsubscribe(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestList(t *testing.T) {
	apiHandler, mockStore := setupAPI(t)
	targetURN, _ := urn.Parse("urn:practice:user:123")

	t.Run("Success", func(t *testing.T) {
		mockStore.On("List", mock.Anything, targetURN).Return([]push.SubscriptionRecord{{
			Endpoint: "https://fcm.googleapis.com/fcm/send/xyz",
			Keys:     push.Keys{P256dh: []byte{0xDE, 0xAD, 0xBE, 0xEF}, Auth: []byte{0xCA, 0xFE, 0xBA, 0xBE}},
		}}, nil).Once()
		req := withUser(httptest.NewRequest("GET", "/push/subscriptions", nil), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.List(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp api.ListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Subscriptions, 1)
		assert.Equal(t, "https://fcm.googleapis.com/fcm/send/xyz", resp.Subscriptions[0].Endpoint)
		assert.Equal(t, "3q2+7w==", resp.Subscriptions[0].Keys.P256dh)
	})

	t.Run("Empty list is an empty array", func(t *testing.T) {
		mockStore.On("List", mock.Anything, targetURN).Return([]push.SubscriptionRecord{}, nil).Once()
		req := withUser(httptest.NewRequest("GET", "/push/subscriptions", nil), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.List(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"subscriptions":[]}`, w.Body.String())
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()

		apiHandler.List(w, httptest.NewRequest("GET", "/push/subscriptions", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestVapidKey(t *testing.T) {
	apiHandler, _ := setupAPI(t)
	w := httptest.NewRecorder()

	apiHandler.VapidKey(w, httptest.NewRequest("GET", "/push/vapid-public-key", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"BPublicKey"}`, w.Body.String())
}
