package syncworker

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"wash-sync-backend/internal/model"
)

// CRM wire representations.

type userDTO struct {
	ID    string         `json:"id"`
	Type  model.UserType `json:"type"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Phone string         `json:"phone"`
}

type orderDTO struct {
	ID            string            `json:"id"`
	IncrementID   int64             `json:"incrementId"`
	CustomerID    string            `json:"customerId,omitempty"`
	CustomerName  string            `json:"customerName,omitempty"`
	CustomerEmail string            `json:"customerEmail,omitempty"`
	GrandTotal    float64           `json:"grandTotal"`
	Status        model.OrderStatus `json:"status"`
	Type          model.OrderType   `json:"type"`
	StationID     string            `json:"stationId,omitempty"`
	Data          datatypes.JSONMap `json:"data,omitempty"`
	CreatedTime   time.Time         `json:"createdTime"`
}

type orderItemDTO struct {
	ID         string            `json:"id"`
	OrderID    string            `json:"orderId"`
	DeviceID   string            `json:"deviceId,omitempty"`
	DeviceNo   string            `json:"deviceNo,omitempty"`
	WashStatus string            `json:"washStatus,omitempty"`
	Data       datatypes.JSONMap `json:"data,omitempty"`
}

type transactionDTO struct {
	ID          string                  `json:"id"`
	OrderID     string                  `json:"orderId"`
	Status      model.TransactionStatus `json:"status"`
	Amount      float64                 `json:"amount"`
	Method      string                  `json:"paymentMethod,omitempty"`
	StationID   string                  `json:"stationId,omitempty"`
	CreatedTime time.Time               `json:"createdTime"`
}

type campaignDTO struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Data datatypes.JSONMap `json:"data,omitempty"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{ID: u.ID, Type: u.Type, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func toOrderDTO(o *model.Order) orderDTO {
	return orderDTO{
		ID:            o.ID,
		IncrementID:   o.IncrementID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		GrandTotal:    o.GrandTotal,
		Status:        o.Status,
		Type:          o.Type,
		StationID:     o.StationID(),
		Data:          o.Data,
		CreatedTime:   o.CreatedAt,
	}
}

func toOrderItemDTO(i *model.OrderItem) orderItemDTO {
	dto := orderItemDTO{ID: i.ID, OrderID: i.OrderID, DeviceNo: i.DeviceNo(), Data: i.Data}
	if v, ok := i.Data["deviceId"].(string); ok {
		dto.DeviceID = v
	}
	if v, ok := i.Data["washStatus"].(string); ok {
		dto.WashStatus = v
	}
	return dto
}

func toTransactionDTO(t *model.OrderTransaction, stationID string) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		OrderID:     t.OrderID,
		Status:      t.Status,
		Amount:      t.Amount,
		Method:      t.Method,
		StationID:   stationID,
		CreatedTime: t.CreatedAt,
	}
}

func toCampaignDTO(c *model.Campaign) campaignDTO {
	return campaignDTO{ID: c.ID, Name: c.Name, Data: c.Data}
}

// snapshot captures v as the value of a SyncLog row.
func snapshot(v interface{}) datatypes.JSONMap {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m datatypes.JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
