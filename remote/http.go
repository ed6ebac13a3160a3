package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/models"
)

// httpDatabase is the REST binding of [Database]. Each instance is bound to
// one database scope; the scope travels as a path segment.
type httpDatabase struct {
	client   *resty.Client
	scope    models.DatabaseScope
	clientID string

	logger *logger.Logger
}

// NewHTTPDatabase constructs an HTTP implementation of [Database] rooted at
// baseURL. A random client identifier is attached to every request so the
// server can enumerate this client's in-flight long-running operations.
func NewHTTPDatabase(baseURL string, scope models.DatabaseScope, log *logger.Logger) (Database, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}

	client := resty.New().
		SetBaseURL(normalized).
		SetHeader("Content-Type", "application/json")

	return &httpDatabase{
		client:   client,
		scope:    scope,
		clientID: uuid.NewString(),
		logger:   log.WithComponent("remote-http"),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func (h *httpDatabase) request(ctx context.Context) *resty.Request {
	return h.client.R().
		SetContext(ctx).
		SetHeader("X-Client-ID", h.clientID)
}

type tokenRequest struct {
	Token models.ChangeToken `json:"token,omitempty"`
}

func (h *httpDatabase) FetchDatabaseChanges(ctx context.Context, since models.ChangeToken) (DatabaseChanges, error) {
	var changes DatabaseChanges
	resp, err := h.request(ctx).
		SetBody(tokenRequest{Token: since}).
		SetResult(&changes).
		Post(fmt.Sprintf("/api/%s/changes/database", h.scope))
	if err != nil {
		return DatabaseChanges{}, transportError("fetch database changes", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return DatabaseChanges{}, err
	}

	h.logger.Debug().Int("zones", len(changes.ChangedZones)).Bool("more", changes.More).
		Msg("database changes fetched")
	return changes, nil
}

func (h *httpDatabase) FetchZoneChanges(ctx context.Context, zone string, since models.ChangeToken) (ZoneChanges, error) {
	var changes ZoneChanges
	resp, err := h.request(ctx).
		SetBody(tokenRequest{Token: since}).
		SetResult(&changes).
		Post(fmt.Sprintf("/api/%s/changes/zone/%s", h.scope, url.PathEscape(zone)))
	if err != nil {
		return ZoneChanges{}, transportError("fetch zone changes", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return ZoneChanges{}, err
	}
	return changes, nil
}

type modifyRequest struct {
	Save    []models.Record   `json:"save"`
	Delete  []models.RecordID `json:"delete"`
	Options ModifyOptions     `json:"options"`
}

func (h *httpDatabase) ModifyRecords(ctx context.Context, save []models.Record, del []models.RecordID, opts ModifyOptions) error {
	resp, err := h.request(ctx).
		SetBody(modifyRequest{Save: save, Delete: del, Options: opts}).
		Post(fmt.Sprintf("/api/%s/records/modify", h.scope))
	if err != nil {
		return transportError("modify records", err)
	}
	return mapHTTPError(resp)
}

func (h *httpDatabase) CreateZone(ctx context.Context, zone string) error {
	resp, err := h.request(ctx).Post(fmt.Sprintf("/api/%s/zones/%s", h.scope, url.PathEscape(zone)))
	if err != nil {
		return transportError("create zone", err)
	}
	return mapHTTPError(resp)
}

func (h *httpDatabase) DeleteZone(ctx context.Context, zone string) error {
	resp, err := h.request(ctx).Delete(fmt.Sprintf("/api/%s/zones/%s", h.scope, url.PathEscape(zone)))
	if err != nil {
		return transportError("delete zone", err)
	}
	return mapHTTPError(resp)
}

func (h *httpDatabase) CreateSubscription(ctx context.Context, subscriptionID string) error {
	resp, err := h.request(ctx).Post(fmt.Sprintf("/api/%s/subscriptions/%s", h.scope, url.PathEscape(subscriptionID)))
	if err != nil {
		return transportError("create subscription", err)
	}
	return mapHTTPError(resp)
}

func (h *httpDatabase) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	resp, err := h.request(ctx).Delete(fmt.Sprintf("/api/%s/subscriptions/%s", h.scope, url.PathEscape(subscriptionID)))
	if err != nil {
		return transportError("delete subscription", err)
	}
	return mapHTTPError(resp)
}

type operationsResponse struct {
	IDs []string `json:"ids"`
}

func (h *httpDatabase) ListOperations(ctx context.Context) ([]string, error) {
	var ops operationsResponse
	resp, err := h.request(ctx).
		SetResult(&ops).
		Get(fmt.Sprintf("/api/%s/operations", h.scope))
	if err != nil {
		return nil, transportError("list operations", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}
	return ops.IDs, nil
}

func (h *httpDatabase) WaitOperation(ctx context.Context, operationID string) error {
	resp, err := h.request(ctx).
		Get(fmt.Sprintf("/api/%s/operations/%s/wait", h.scope, url.PathEscape(operationID)))
	if err != nil {
		return transportError("wait operation", err)
	}
	return mapHTTPError(resp)
}

type accountStatusResponse struct {
	Status string `json:"status"`
}

func (h *httpDatabase) AccountStatus(ctx context.Context) (models.AccountStatus, error) {
	var body accountStatusResponse
	resp, err := h.request(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/api/%s/account/status", h.scope))
	if err != nil {
		return models.AccountIndeterminate, transportError("account status", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.AccountIndeterminate, err
	}

	switch body.Status {
	case "available":
		return models.AccountAvailable, nil
	case "no-account":
		return models.AccountNoAccount, nil
	case "restricted":
		return models.AccountRestricted, nil
	case "temporarily-unavailable":
		return models.AccountTemporarilyUnavailable, nil
	default:
		return models.AccountIndeterminate, nil
	}
}
