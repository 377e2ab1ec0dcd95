package syncworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wash-sync-backend/internal/crm"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/queue"
	"wash-sync-backend/internal/store"
	"wash-sync-backend/internal/syncbus"
)

// Processor handles the jobs of one queue. A returned error is logged by the
// worker; the job is not retried.
type Processor interface {
	Process(ctx context.Context, job queue.Job) error
}

// ErrUnexpectedJob is returned for a job type a processor does not own.
var ErrUnexpectedJob = errors.New("unexpected job type")

// NewProcessors returns the processor of every sync queue, keyed by queue name.
func NewProcessors(s store.Store, c CRM, log logger.Logger) map[string]Processor {
	base := newSyncer(s, c, log)
	return map[string]Processor{
		syncbus.QueueUser:     &UserProcessor{syncer: base},
		syncbus.QueueOrder:    &OrderProcessor{syncer: base},
		syncbus.QueueCampaign: &CampaignProcessor{syncer: base},
		syncbus.QueueRefund:   &RefundProcessor{syncer: base, Location: time.UTC},
	}
}

// skip treats a vanished or ineligible record as done.
func skip(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// UserProcessor syncs client accounts.
type UserProcessor struct {
	syncer
}

func (p *UserProcessor) Process(ctx context.Context, job queue.Job) error {
	if job.Type != model.SyncTypeUser {
		return fmt.Errorf("%w %s on user queue", ErrUnexpectedJob, job.Type)
	}
	user, err := p.store.GetUser(ctx, job.ObjectID)
	if err != nil {
		return skip(err)
	}
	if user.Type != model.UserTypeClient {
		return nil
	}
	p.push(ctx, model.SyncTypeUser, job.Action, user.ID, toUserDTO(user), user)
	return nil
}

// OrderProcessor syncs orders, their items and their non-draft transactions.
type OrderProcessor struct {
	syncer
}

func (p *OrderProcessor) Process(ctx context.Context, job queue.Job) error {
	switch job.Type {
	case model.SyncTypeOrder:
		return p.syncOrder(ctx, job.Action, job.ObjectID)
	case model.SyncTypeOrderItem:
		item, err := p.store.GetOrderItem(ctx, job.ObjectID)
		if err != nil {
			return skip(err)
		}
		p.push(ctx, model.SyncTypeOrderItem, job.Action, item.ID, toOrderItemDTO(item), item)
		return nil
	case model.SyncTypeOrderTransaction:
		txn, err := p.store.GetTransaction(ctx, job.ObjectID)
		if err != nil {
			return skip(err)
		}
		var stationID string
		if order, err := p.store.GetOrder(ctx, txn.OrderID); err == nil {
			stationID = order.StationID()
		}
		p.push(ctx, model.SyncTypeOrderTransaction, job.Action, txn.ID, toTransactionDTO(txn, stationID), txn)
		return nil
	default:
		return fmt.Errorf("%w %s on order queue", ErrUnexpectedJob, job.Type)
	}
}

// syncOrder pushes the order, then its children only if the order itself synced.
func (p *OrderProcessor) syncOrder(ctx context.Context, action model.SyncAction, id string) error {
	order, err := p.store.GetOrder(ctx, id)
	if err != nil {
		return skip(err)
	}
	if order.Status == model.OrderStatusDraft {
		return nil
	}

	items, err := p.store.OrderItems(ctx, order.ID)
	if err != nil {
		return err
	}
	txns, err := p.store.OrderTransactions(ctx, order.ID)
	if err != nil {
		return err
	}

	p.log.Infof(ctx, "[SYNC ORDER] start %s", order.ID)
	if !p.push(ctx, model.SyncTypeOrder, action, order.ID, toOrderDTO(order), order) {
		return nil
	}

	for i := range items {
		p.push(ctx, model.SyncTypeOrderItem, action, items[i].ID, toOrderItemDTO(&items[i]), &items[i])
	}
	stationID := order.StationID()
	for i := range txns {
		p.push(ctx, model.SyncTypeOrderTransaction, action, txns[i].ID, toTransactionDTO(&txns[i], stationID), &txns[i])
	}
	p.log.Infof(ctx, "[SYNC ORDER] done %s", order.ID)
	return nil
}

// CampaignProcessor syncs marketing campaigns.
type CampaignProcessor struct {
	syncer
}

func (p *CampaignProcessor) Process(ctx context.Context, job queue.Job) error {
	if job.Type != model.SyncTypeCampaign {
		return fmt.Errorf("%w %s on campaign queue", ErrUnexpectedJob, job.Type)
	}
	campaign, err := p.store.GetCampaign(ctx, job.ObjectID)
	if err != nil {
		return skip(err)
	}
	p.push(ctx, model.SyncTypeCampaign, job.Action, campaign.ID, toCampaignDTO(campaign), campaign)
	return nil
}

// RefundProcessor files one refund request per failed order.
type RefundProcessor struct {
	syncer
	// Location is the zone refund descriptions are written in.
	Location *time.Location
}

func (p *RefundProcessor) Process(ctx context.Context, job queue.Job) error {
	if job.Type != model.SyncTypeRefund {
		return fmt.Errorf("%w %s on refund queue", ErrUnexpectedJob, job.Type)
	}
	order, err := p.store.GetOrder(ctx, job.ObjectID)
	if err != nil {
		return skip(err)
	}

	refunded, err := p.store.IsRefunded(ctx, order.ID)
	if err != nil {
		return err
	}
	if refunded {
		p.log.Infof(ctx, "order %s has already been refunded", order.ID)
		return nil
	}

	req := crm.RefundRequest{
		OrderID:     order.ID,
		UserID:      order.CustomerID,
		Amount:      order.GrandTotal,
		Description: p.describe(order),
	}

	guid, err := p.crm.Refund(ctx, req)
	synced := err == nil && guid != ""
	if err != nil {
		p.log.Errorf(ctx, "[REFUND FAILED] order %s: %v", order.ID, err)
	}

	entry := &model.SyncLog{
		ObjectID: order.ID,
		Type:     model.SyncTypeRefund,
		Action:   model.SyncActionSync,
		Synced:   synced,
		Value:    refundValue(req, guid),
		SyncedAt: p.now(),
	}
	if err := p.store.LogSync(ctx, entry); err != nil {
		return fmt.Errorf("failed to record refund of order %s: %w", order.ID, err)
	}

	result := "synced"
	if !synced {
		result = "failed"
	}
	metrics.SyncOutcomesTotal.WithLabelValues(string(model.SyncTypeRefund), result).Inc()
	return nil
}

func (p *RefundProcessor) describe(order *model.Order) string {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	customer := order.CustomerName
	if customer == "" {
		customer = order.CustomerEmail
	}
	if customer == "" {
		customer = "Customer"
	}
	return fmt.Sprintf("[AUTO-REFUND REQUEST] <%s> <#%d> <%s> - Reason: %s",
		customer, order.IncrementID, p.now().In(loc).Format("15:04 02/01/2006 -07:00"), refundReason(order))
}

func refundReason(order *model.Order) string {
	switch order.Type {
	case model.OrderTypeTokenize:
		return "card tokenization charge"
	case model.OrderTypePackage:
		return "package purchase failed"
	}
	switch order.Status {
	case model.OrderStatusSelfStop:
		return "wash stopped by the customer"
	case model.OrderStatusAbnormalStop:
		return "machine stopped abnormally"
	case model.OrderStatusFailed:
		return "machine failed to start"
	case model.OrderStatusRefunded:
		return "refunded by the machine"
	}
	return ""
}
