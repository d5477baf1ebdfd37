// Package qdrant implements vectorstore.VectorStore on Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/creastat/chat"
	"github.com/creastat/chat/vectorstore"
	"github.com/pkg/errors"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

const defaultGRPCPort = 6334

// Payload keys mapped onto SearchResult fields.
const (
	payloadContent    = "content"
	payloadSourceID   = "source_id"
	payloadDocumentID = "document_id"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the server address, e.g. "https://example.qdrant.io:6334".
	// A missing scheme means https; a missing port means 6334.
	URL            string
	CollectionName string
	APIKey         string
}

// Client implements vectorstore.VectorStore.
type Client struct {
	client         *qdrant.Client
	collectionName string
}

// New connects to Qdrant.
func New(cfg Config) (*Client, error) {
	if cfg.CollectionName == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "qdrant collection is required")
	}
	qcfg, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	qdrantClient, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create qdrant client")
	}

	log.Debug().
		Str("host", qcfg.Host).
		Int("port", qcfg.Port).
		Bool("tls", qcfg.UseTLS).
		Str("collection", cfg.CollectionName).
		Msg("Connected to qdrant")

	return &Client{
		client:         qdrantClient,
		collectionName: cfg.CollectionName,
	}, nil
}

func parseConfig(cfg Config) (*qdrant.Config, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "qdrant url is required")
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse qdrant url")
	}

	port := defaultGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid qdrant port %q", p)
		}
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

// Search implements vectorstore.VectorStore.
func (c *Client) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	limit64 := uint64(limit)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit64,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "qdrant search failed")
	}

	results := make([]vectorstore.SearchResult, 0, len(points))
	for _, point := range points {
		if filter.MinScore > 0 && point.Score < filter.MinScore {
			continue
		}
		results = append(results, toResult(point))
	}
	return results, nil
}

// Close implements vectorstore.VectorStore.
func (c *Client) Close() error {
	return c.client.Close()
}

func toResult(point *qdrant.ScoredPoint) vectorstore.SearchResult {
	res := vectorstore.SearchResult{
		ID:       pointID(point.Id),
		Score:    point.Score,
		Metadata: make(map[string]any),
	}

	for k, v := range point.Payload {
		switch k {
		case payloadContent:
			res.Content = v.GetStringValue()
		case payloadSourceID:
			res.SourceID = v.GetStringValue()
		case payloadDocumentID:
			res.DocumentID = v.GetStringValue()
		default:
			res.Metadata[k] = extractValue(v)
		}
	}
	return res
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// buildFilter returns nil when the filter has no conditions.
func buildFilter(filter vectorstore.SearchFilter) *qdrant.Filter {
	var conditions []*qdrant.Condition

	switch sources := filter.Sources(); len(sources) {
	case 0:
	case 1:
		conditions = append(conditions, fieldCondition(payloadSourceID,
			&qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: sources[0]}}))
	default:
		keywords := append([]string(nil), sources...)
		conditions = append(conditions, fieldCondition(payloadSourceID,
			&qdrant.Match{MatchValue: &qdrant.Match_Keywords{
				Keywords: &qdrant.RepeatedStrings{Strings: keywords},
			}}))
	}

	for key, value := range filter.Metadata {
		conditions = append(conditions, fieldCondition(key, matchValue(value)))
	}

	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func fieldCondition(key string, match *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}
}

func matchValue(value any) *qdrant.Match {
	switch v := value.(type) {
	case string:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
	case int:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
	case int64:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
	case bool:
		return &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
	default:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}}
	}
}

func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}

	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return nil
	}
}

var _ vectorstore.VectorStore = (*Client)(nil)
