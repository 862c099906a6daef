package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cmarket/permalink/utils"
)

// CatalogNotifier tells the product catalog about slot transitions so the
// product's own status can follow. Notification is best-effort: the slot
// state, not the webhook, is the source of truth.
type CatalogNotifier interface {
	ProductAssigned(ctx context.Context, productID string, slotNumber int)
	ProductReclaimed(ctx context.Context, productID string)
}

// WebhookNotifier posts slot transitions to the catalog's webhook endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier builds a notifier for the given URL. An empty URL yields
// a no-op notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) ProductAssigned(ctx context.Context, productID string, slotNumber int) {
	n.post(ctx, map[string]interface{}{
		"event":       "product_assigned",
		"product_id":  productID,
		"slot_number": slotNumber,
	})
}

func (n *WebhookNotifier) ProductReclaimed(ctx context.Context, productID string) {
	n.post(ctx, map[string]interface{}{
		"event":      "product_reclaimed",
		"product_id": productID,
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload map[string]interface{}) {
	if n.url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("catalog webhook failed: %v", err)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && utils.Sugar != nil {
		utils.Sugar.Warnf("catalog webhook returned %s for %v", resp.Status, payload["event"])
	}
}
