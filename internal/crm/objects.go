package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wash-sync-backend/internal/model"
)

// SearchFilter is one condition of a CRM search. Inner slices are AND-ed, outer ones OR-ed.
type SearchFilter struct {
	FieldName string `json:"fieldName"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

type searchRequest struct {
	Filters      [][]SearchFilter `json:"filters"`
	SearchFields []string         `json:"searchFields"`
	Select       []string         `json:"select"`
	SortBy       string           `json:"sortBy"`
	SortOrder    string           `json:"sortOrder"`
	Offset       int              `json:"offset"`
	Limit        int              `json:"limit"`
}

type searchResponse struct {
	Data []struct {
		GUID string `json:"guid"`
	} `json:"data"`
}

type objectResponse struct {
	GUID string `json:"guid"`
}

// FindGUID returns the guid of the newest object at path whose field equals value,
// or "" when there is none. An error means the lookup itself failed.
func (c *Client) FindGUID(ctx context.Context, path, field, value string) (string, error) {
	req := searchRequest{
		Filters:      [][]SearchFilter{{{FieldName: field, Operator: "===", Value: value}}},
		SearchFields: []string{field},
		Select:       []string{field, "guid"},
		SortBy:       "createdAt",
		SortOrder:    "DESC",
		Limit:        1,
	}

	var res searchResponse
	if err := c.do(ctx, http.MethodPost, path+"/search", req, &res); err != nil {
		return "", fmt.Errorf("failed to search %s by %s: %w", path, field, err)
	}
	if len(res.Data) == 0 {
		return "", nil
	}
	return res.Data[0].GUID, nil
}

// SyncRequest pushes one record. GUID is the record's existing CRM id, if any.
type SyncRequest struct {
	Type   model.SyncType
	Action model.SyncAction
	GUID   string
	Data   interface{}
}

// Sync creates (no GUID), updates (GUID) or deletes a record and returns its guid.
// Deleting a record that never reached the CRM succeeds without a call.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (string, error) {
	if req.Action == "" || req.Data == nil {
		return "", errors.New("sync request needs an action and data")
	}
	path, err := PathFor(req.Type)
	if err != nil {
		return "", err
	}
	c.log.Infof(ctx, "[SYNC %s] action: %s, guid: %s", req.Type, req.Action, req.GUID)

	if req.Action == model.SyncActionDelete {
		if req.GUID == "" {
			return "", nil
		}
		if err := c.do(ctx, http.MethodDelete, path+"/"+req.GUID, nil, nil); err != nil {
			return "", fmt.Errorf("failed to delete %s %s: %w", req.Type, req.GUID, err)
		}
		return req.GUID, nil
	}

	method, target := http.MethodPost, path
	if req.GUID != "" {
		method, target = http.MethodPut, path+"/"+req.GUID
	}

	var res objectResponse
	if err := c.do(ctx, method, target, req.Data, &res); err != nil {
		return "", fmt.Errorf("failed to sync %s: %w", req.Type, err)
	}
	if res.GUID == "" {
		return "", fmt.Errorf("crm accepted %s but returned no guid", req.Type)
	}
	return res.GUID, nil
}

// RefundRequest asks the CRM to refund an order.
type RefundRequest struct {
	OrderID     string  `json:"orderId"`
	UserID      string  `json:"userId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// Refund files a refund request and returns its guid.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (string, error) {
	return c.Sync(ctx, SyncRequest{Type: model.SyncTypeRefund, Action: model.SyncActionSync, Data: req})
}
