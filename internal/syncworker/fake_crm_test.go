package syncworker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wash-sync-backend/internal/crm"
	"wash-sync-backend/internal/model"
)

// fakeCRM keeps records in memory, keyed by path and local id.
type fakeCRM struct {
	mu         sync.Mutex
	records    map[string]map[string]string // path -> local id -> guid
	creates    int
	requests   []crm.SyncRequest
	refunds    []crm.RefundRequest
	failLookup bool
	failSync   map[model.SyncType]bool
	next       int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{records: map[string]map[string]string{}, failSync: map[model.SyncType]bool{}}
}

func (f *fakeCRM) FindGUID(_ context.Context, path, _, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLookup {
		return "", errors.New("search unavailable")
	}
	return f.records[path][value], nil
}

func (f *fakeCRM) Sync(_ context.Context, req crm.SyncRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failSync[req.Type] {
		return "", errors.New("crm unavailable")
	}

	path, err := crm.PathFor(req.Type)
	if err != nil {
		return "", err
	}
	id := localID(req.Data)
	if f.records[path] == nil {
		f.records[path] = map[string]string{}
	}

	switch {
	case req.Action == model.SyncActionDelete:
		if req.GUID == "" {
			return "", nil
		}
		delete(f.records[path], id)
		return req.GUID, nil
	case req.GUID != "":
		return req.GUID, nil
	default:
		f.next++
		f.creates++
		guid := fmt.Sprintf("guid-%d", f.next)
		f.records[path][id] = guid
		return guid, nil
	}
}

func (f *fakeCRM) Refund(ctx context.Context, req crm.RefundRequest) (string, error) {
	f.mu.Lock()
	f.refunds = append(f.refunds, req)
	f.mu.Unlock()
	return f.Sync(ctx, crm.SyncRequest{Type: model.SyncTypeRefund, Action: model.SyncActionSync, Data: req})
}

// localID reads the local id every wire representation carries.
func localID(data interface{}) string {
	switch d := data.(type) {
	case userDTO:
		return d.ID
	case orderDTO:
		return d.ID
	case orderItemDTO:
		return d.ID
	case transactionDTO:
		return d.ID
	case campaignDTO:
		return d.ID
	case crm.RefundRequest:
		return d.OrderID
	}
	return ""
}
