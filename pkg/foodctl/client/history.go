package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type HistoryItem struct {
	ID          string         `json:"_id" yaml:"id"`
	Timestamp   string         `json:"timestamp" yaml:"timestamp"`
	FoodName    string         `json:"food_name" yaml:"foodName"`
	Confidence  float64        `json:"confidence" yaml:"confidence"`
	ImageBase64 string         `json:"image_base64,omitempty" yaml:"-"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

type SaveHistoryRequest struct {
	FoodName   string
	Confidence float64
	Language   string
	Extra      map[string]any
}

type HistoryService struct {
	client *Client
	now    func() time.Time
}

func (c *Client) History() *HistoryService {
	return &HistoryService{client: c, now: time.Now}
}

// List returns the newest limit entries, newest first. A limit of zero uses
// the server default.
func (h *HistoryService) List(ctx context.Context, limit int) ([]HistoryItem, error) {
	endpoint := "history"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var out struct {
		History []HistoryItem `json:"history"`
	}
	if err := h.client.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (h *HistoryService) Save(ctx context.Context, in SaveHistoryRequest) (*HistoryItem, error) {
	extra := map[string]any{}
	for k, v := range in.Extra {
		extra[k] = v
	}
	extra["timestamp"] = h.now().UTC().Format(time.RFC3339)
	language := in.Language
	if language == "" {
		language = "VN"
	}
	extra["language"] = language

	body := map[string]any{
		"food_name":  in.FoodName,
		"confidence": in.Confidence,
		"extra":      extra,
	}
	var out struct {
		Item *HistoryItem `json:"item"`
	}
	if err := h.client.do(ctx, http.MethodPost, "history", body, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (h *HistoryService) Delete(ctx context.Context, id string) error {
	return h.client.do(ctx, http.MethodDelete, "history/"+url.PathEscape(id), nil, nil)
}

func (h *HistoryService) Clear(ctx context.Context) error {
	return h.client.do(ctx, http.MethodDelete, "history", nil, nil)
}
