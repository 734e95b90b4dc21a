package orderclient

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

// The order-service has shipped several envelope shapes over time; these
// paths are tried in order.
var (
	orderPaths          = []string{"data.order", "order", "data"}
	historyPaths        = []string{"data.history", "history", "data.order_status_updates", "order_status_updates", "data"}
	embeddedHistoryKeys = []string{"order_status_updates", "status_history", "history"}
)

var (
	idKeys       = []string{"id", "_id", "order_id"}
	numberKeys   = []string{"order_number", "orderNumber", "number"}
	customerKeys = []string{"customer_name", "customerName", "customer.name"}
	storeKeys    = []string{"store_name", "storeName", "store.name"}
	riderKeys    = []string{"rider_id", "riderId", "rider.id"}
	vehicleKeys  = []string{"vehicle_id", "vehicleId", "vehicle.id"}
	createdKeys  = []string{"created_at", "createdAt"}
	updatedKeys  = []string{"updated_at", "updatedAt"}
	toKeys       = []string{"to_status", "toStatus", "new_status", "status"}
	fromKeys     = []string{"from_status", "fromStatus", "old_status"}
	noteKeys     = []string{"note", "notes", "reason"}
	actorKeys    = []string{"actor", "changed_by", "updated_by", "changedBy"}
	occurredKeys = []string{"occurred_at", "occurredAt", "created_at", "timestamp"}
	messageKeys  = []string{"message", "error.message", "error", "detail"}
	timeLayouts  = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
)

func decodeOrder(body []byte) (*Order, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	obj, ok := locateOrder(gjson.ParseBytes(body))
	if !ok {
		return nil, fmt.Errorf("%w: order object not found", ErrMalformedResponse)
	}

	status, err := lifecycle.ParseStatus(obj.Get("status").String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	order := &Order{
		ID:           firstOf(obj, idKeys).String(),
		Number:       firstOf(obj, numberKeys).String(),
		Status:       status,
		CustomerName: firstOf(obj, customerKeys).String(),
		StoreName:    firstOf(obj, storeKeys).String(),
		RiderID:      firstOf(obj, riderKeys).String(),
		VehicleID:    firstOf(obj, vehicleKeys).String(),
		CreatedAt:    timePtr(firstOf(obj, createdKeys)),
		UpdatedAt:    timePtr(firstOf(obj, updatedKeys)),
	}
	for _, key := range embeddedHistoryKeys {
		if list := obj.Get(key); list.IsArray() {
			order.History = decodeEntries(list)
			order.EmbeddedHistory = true
			break
		}
	}
	return order, nil
}

func locateOrder(root gjson.Result) (gjson.Result, bool) {
	for _, path := range orderPaths {
		if candidate := root.Get(path); candidate.IsObject() && candidate.Get("status").Exists() {
			return candidate, true
		}
	}
	if root.IsObject() && root.Get("status").Exists() {
		return root, true
	}
	return gjson.Result{}, false
}

func decodeHistory(body []byte) ([]lifecycle.HistoryEntry, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return decodeEntries(root), nil
	}
	for _, path := range historyPaths {
		if list := root.Get(path); list.IsArray() {
			return decodeEntries(list), nil
		}
	}
	return nil, fmt.Errorf("%w: history list not found", ErrMalformedResponse)
}

// decodeEntries skips entries whose target status is unknown and returns
// the rest ordered by occurrence.
func decodeEntries(list gjson.Result) []lifecycle.HistoryEntry {
	entries := make([]lifecycle.HistoryEntry, 0)
	list.ForEach(func(_, item gjson.Result) bool {
		to, err := lifecycle.ParseStatus(firstOf(item, toKeys).String())
		if err != nil {
			return true
		}
		entry := lifecycle.HistoryEntry{
			To:    to,
			Note:  strings.TrimSpace(firstOf(item, noteKeys).String()),
			Actor: strings.TrimSpace(firstOf(item, actorKeys).String()),
		}
		if from, err := lifecycle.ParseStatus(firstOf(item, fromKeys).String()); err == nil {
			entry.From = &from
		}
		if ts, ok := parseTime(firstOf(item, occurredKeys)); ok {
			entry.OccurredAt = ts
		}
		entries = append(entries, entry)
		return true
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})
	return entries
}

func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	root := gjson.ParseBytes(body)
	for _, key := range messageKeys {
		if r := root.Get(key); r.Exists() && r.Type == gjson.String {
			return r.String()
		}
	}
	return ""
}

func firstOf(obj gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		if r := obj.Get(key); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func parseTime(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.Number:
		v := r.Int()
		if v > 1e12 {
			return time.UnixMilli(v).UTC(), true
		}
		return time.Unix(v, 0).UTC(), true
	case gjson.String:
		raw := strings.TrimSpace(r.String())
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func timePtr(r gjson.Result) *time.Time {
	ts, ok := parseTime(r)
	if !ok {
		return nil
	}
	return &ts
}
