// Package search mirrors notification audit records into Elasticsearch.
// Indexing is best-effort: the notifications table in Postgres is the
// source of truth and a failed index write never blocks dispatch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"
)

// NotificationDocument is the shape stored in the audit index.
type NotificationDocument struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	AlertID   string     `json:"alertId,omitempty"`
	Type      string     `json:"type"`
	Channel   string     `json:"channel"`
	Subject   string     `json:"subject"`
	Message   string     `json:"message"`
	Status    string     `json:"status"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type NotificationIndexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewNotificationIndexer(client *elasticsearch.Client, index string, log logger.Logger) *NotificationIndexer {
	return &NotificationIndexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"index": index}),
	}
}

// Index writes or overwrites the document for a notification. Document
// IDs equal the notification ID so status transitions replace the
// earlier PENDING document instead of duplicating it.
func (i *NotificationIndexer) Index(ctx context.Context, n *models.Notification) {
	doc := NotificationDocument{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Type:      string(n.Type),
		Channel:   string(n.Channel),
		Subject:   n.Subject,
		Message:   n.Message,
		Status:    string(n.Status),
		SentAt:    n.SentAt,
		CreatedAt: n.CreatedAt,
	}
	if n.AlertID != nil {
		doc.AlertID = n.AlertID.String()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		i.logger.Error("failed to marshal notification document", map[string]interface{}{
			"notificationId": doc.ID,
			"error":          err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		i.logger.Warn("notification index write failed", map[string]interface{}{
			"notificationId": doc.ID,
			"error":          err.Error(),
		})
		return
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.IsError() {
		i.logger.Warn("notification index write rejected", map[string]interface{}{
			"notificationId": doc.ID,
			"status":         res.StatusCode,
		})
	}
}

// SearchParams narrows a notification audit search.
type SearchParams struct {
	UserID   uuid.UUID
	Status   string
	Keywords string
	From     int
	Size     int
}

type SearchResult struct {
	Documents []NotificationDocument `json:"documents"`
	TotalHits int64                  `json:"totalHits"`
	Took      int64                  `json:"took"`
}

// Search queries the audit index for a user's notifications, optionally
// filtered by status and full-text keywords over subject and message.
func (i *NotificationIndexer) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	filterClauses := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"userId": params.UserID.String()},
		},
	}
	if params.Status != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"status": params.Status},
		})
	}

	mustClauses := []interface{}{}
	if params.Keywords != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  params.Keywords,
				"fields": []string{"subject^2", "message"},
				"type":   "best_fields",
			},
		})
	}

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   mustClauses,
				"filter": filterClauses,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}

	body, _ := json.Marshal(queryBody)

	size := params.Size
	if size <= 0 {
		size = 20
	}
	from := params.From

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search returned status %d", res.StatusCode)
	}

	var envelope struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source NotificationDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &SearchResult{
		TotalHits: envelope.Hits.Total.Value,
		Took:      envelope.Took,
		Documents: make([]NotificationDocument, 0, len(envelope.Hits.Hits)),
	}
	for _, hit := range envelope.Hits.Hits {
		result.Documents = append(result.Documents, hit.Source)
	}
	return result, nil
}
