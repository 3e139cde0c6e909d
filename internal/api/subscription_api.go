package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-push-subscription/internal/keycodec"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

type SubscriptionAPI struct {
	Store          push.SubscriptionStore
	VapidPublicKey string
	Logger         *slog.Logger
}

func NewSubscriptionAPI(store push.SubscriptionStore, vapidPublicKey string, logger *slog.Logger) *SubscriptionAPI {
	return &SubscriptionAPI{
		Store:          store,
		VapidPublicKey: vapidPublicKey,
		Logger:         logger,
	}
}

// Subscribe handles POST /push/subscribe: an idempotent upsert keyed by
// endpoint.
func (api *SubscriptionAPI) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userURN, ok := api.user(w, r)
	if !ok {
		return
	}

	var body webpush.Subscription
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Logger.Error("Subscribe: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid subscription json")
		return
	}

	record, err := keycodec.RecordFromPayload(body)
	if err != nil {
		api.Logger.Warn("Subscribe: Validation failed", "reason", "undecodable keys", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid subscription keys")
		return
	}
	if !record.Complete() {
		api.Logger.Warn("Subscribe: Validation failed", "reason", "missing fields")
		response.WriteJSONError(w, http.StatusBadRequest, "incomplete subscription object")
		return
	}

	if err := api.Store.Save(ctx, userURN, record); err != nil {
		api.Logger.Error("failed to save subscription", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Subscribe: Subscription saved", "user", userURN, "endpoint", record.Endpoint)

	w.WriteHeader(http.StatusNoContent)
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe handles POST /push/unsubscribe. Unknown endpoints succeed.
func (api *SubscriptionAPI) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userURN, ok := api.user(w, r)
	if !ok {
		return
	}

	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Error("Unsubscribe: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Endpoint == "" {
		api.Logger.Warn("Unsubscribe: Validation failed", "reason", "missing endpoint")
		response.WriteJSONError(w, http.StatusBadRequest, "missing endpoint")
		return
	}

	if err := api.Store.Remove(ctx, userURN, req.Endpoint); err != nil {
		api.Logger.Warn("failed to remove subscription", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	api.Logger.Info("Unsubscribe: Subscription removed", "user", userURN, "endpoint", req.Endpoint)

	w.WriteHeader(http.StatusNoContent)
}

type ListResponse struct {
	Subscriptions []webpush.Subscription `json:"subscriptions"`
}

// List handles GET /push/subscriptions: the devices the settings page shows
// as "notifications on" for the signed-in user.
func (api *SubscriptionAPI) List(w http.ResponseWriter, r *http.Request) {
	userURN, ok := api.user(w, r)
	if !ok {
		return
	}

	records, err := api.Store.List(r.Context(), userURN)
	if err != nil {
		api.Logger.Error("failed to list subscriptions", "user", userURN, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	resp := ListResponse{Subscriptions: make([]webpush.Subscription, 0, len(records))}
	for _, record := range records {
		resp.Subscriptions = append(resp.Subscriptions, keycodec.Payload(record))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// VapidKey handles GET /push/vapid-public-key for clients that do not have
// the key baked in at build time.
func (api *SubscriptionAPI) VapidKey(w http.ResponseWriter, r *http.Request) {
	if api.VapidPublicKey == "" {
		response.WriteJSONError(w, http.StatusNotFound, "vapid key not configured")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(vapidKeyResponse{PublicKey: api.VapidPublicKey})
}

func (api *SubscriptionAPI) user(w http.ResponseWriter, r *http.Request) (urn.URN, bool) {
	var none urn.URN
	userID, ok := middleware.GetUserHandleFromContext(r.Context())
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return none, false
	}
	userURN, err := urn.Parse(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusUnauthorized, "invalid user identity")
		return none, false
	}
	return userURN, true
}
