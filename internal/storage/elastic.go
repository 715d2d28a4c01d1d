// ABOUTME: Search-engine backend: one index per logical table, bulk-indexed per batch.
// ABOUTME: Serves as both Sink and Querier over the Elasticsearch HTTP API.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/query"
	"go.uber.org/zap"
)

// ElasticConfig holds connection settings for the search backend.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	// Index is the prefix of the three per-table indices.
	Index string
}

// Elastic stores each table in its own index named <prefix>_<table>.
type Elastic struct {
	es     *elasticsearch.Client
	prefix string
	log    *zap.Logger
}

var (
	_ Sink    = (*Elastic)(nil)
	_ Querier = (*Elastic)(nil)
)

// OpenElastic builds a client. No request is made until first use.
func OpenElastic(cfg ElasticConfig, log *zap.Logger) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create elasticsearch client: %v", models.ErrBackendUnavailable, err)
	}
	return &Elastic{es: es, prefix: cfg.Index, log: log}, nil
}

func (e *Elastic) Name() string { return string(BackendElasticsearch) }

// IndexName returns the index holding table t.
func (e *Elastic) IndexName(t models.Table) string {
	return e.prefix + "_" + string(t)
}

// EnsureSchema creates missing indices with strict mappings.
func (e *Elastic) EnsureSchema(ctx context.Context) error {
	for _, t := range models.AllTables {
		index := e.IndexName(t)
		res, err := e.es.Indices.Exists([]string{index}, e.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return e.unavailable("check index", err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		mapping, err := json.Marshal(indexMapping(t))
		if err != nil {
			return fmt.Errorf("encode %s mapping: %w", t, err)
		}
		res, err = e.es.Indices.Create(index,
			e.es.Indices.Create.WithBody(bytes.NewReader(mapping)),
			e.es.Indices.Create.WithContext(ctx),
		)
		if err := e.check("create index "+index, res, err); err != nil {
			return err
		}
		e.log.Info("index created", zap.String("index", index))
	}
	return nil
}

// Reset deletes the three indices if they exist.
func (e *Elastic) Reset(ctx context.Context) error {
	indices := make([]string, 0, len(models.AllTables))
	for _, t := range models.AllTables {
		indices = append(indices, e.IndexName(t))
	}
	res, err := e.es.Indices.Delete(indices,
		e.es.Indices.Delete.WithIgnoreUnavailable(true),
		e.es.Indices.Delete.WithContext(ctx),
	)
	return e.check("delete indices", res, err)
}

// LoadBatch indexes every row of b in one bulk request. Batches are not split further.
func (e *Elastic) LoadBatch(ctx context.Context, b models.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range b.Rows {
		buf.WriteString(`{"index":{}}` + "\n")
		if err := enc.Encode(Document(row)); err != nil {
			return fmt.Errorf("encode %s document: %w", b.Table, err)
		}
	}

	res, err := e.es.Bulk(bytes.NewReader(buf.Bytes()),
		e.es.Bulk.WithIndex(e.IndexName(b.Table)),
		e.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return e.unavailable("bulk index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: bulk index %s: %s", models.ErrBackendUnavailable, b.Table, res.Status())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if br.Errors {
		failed, reason := br.failures()
		return fmt.Errorf("bulk index %s: %d of %d documents failed: %s", b.Table, failed, b.Len(), reason)
	}
	return nil
}

// Finalize refreshes the indices so loaded documents are searchable.
func (e *Elastic) Finalize(ctx context.Context) error {
	indices := make([]string, 0, len(models.AllTables))
	for _, t := range models.AllTables {
		indices = append(indices, e.IndexName(t))
	}
	res, err := e.es.Indices.Refresh(
		e.es.Indices.Refresh.WithIndex(indices...),
		e.es.Indices.Refresh.WithContext(ctx),
	)
	return e.check("refresh indices", res, err)
}

// Abort is a no-op: indexed documents are not rolled back.
func (e *Elastic) Abort(ctx context.Context) error { return nil }

func (e *Elastic) Close() error { return nil }

// Execute runs plan against the per-table indices.
func (e *Elastic) Execute(ctx context.Context, plan *query.Plan) ([]query.Row, error) {
	switch plan.Op {
	case query.OpSummary:
		rows := []query.Row{}
		for _, part := range plan.Parts {
			got, err := e.searchPlan(ctx, part)
			if err != nil {
				return nil, err
			}
			rows = append(rows, got...)
		}
		return rows, nil

	case query.OpWorkoutStats:
		var ids []string
		err := e.search(ctx, plan.FilterTable(), query.ElasticWorkoutIDsBody(plan), func(r io.Reader) error {
			var err error
			ids, err = query.DecodeWorkoutIDs(r)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []query.Row{}, nil
		}
		var rows []query.Row
		err = e.search(ctx, plan.Table, query.ElasticStatsForWorkoutsBody(plan, ids), func(r io.Reader) error {
			var err error
			rows, err = query.DecodeElastic(plan, r)
			return err
		})
		return rows, err
	}
	return e.searchPlan(ctx, plan)
}

func (e *Elastic) searchPlan(ctx context.Context, plan *query.Plan) ([]query.Row, error) {
	body, err := query.ElasticBody(plan)
	if err != nil {
		return nil, err
	}
	var rows []query.Row
	err = e.search(ctx, plan.Table, body, func(r io.Reader) error {
		var err error
		rows, err = query.DecodeElastic(plan, r)
		return err
	})
	return rows, err
}

func (e *Elastic) search(ctx context.Context, t models.Table, body map[string]any, decode func(io.Reader) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode search body: %w", err)
	}
	e.log.Debug("executing search", zap.String("index", e.IndexName(t)), zap.ByteString("body", payload))

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.IndexName(t)),
		e.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return e.unavailable("search", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: index %s", models.ErrSourceNotFound, e.IndexName(t))
	}
	if res.IsError() {
		return fmt.Errorf("%w: search %s: %s", models.ErrBackendUnavailable, e.IndexName(t), res.Status())
	}
	return decode(res.Body)
}

func (e *Elastic) check(action string, res *esapi.Response, err error) error {
	if err != nil {
		return e.unavailable(action, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s: %s", models.ErrBackendUnavailable, action, res.String())
	}
	return nil
}

func (e *Elastic) unavailable(action string, err error) error {
	return unavailable(e.Name()+" "+action, err)
}

// Document renders a row as an indexable document. Timestamps keep their
// original offset and dateComponents mirrors startDate.
func Document(row models.Row) map[string]any {
	cols := models.Columns(row.Table())
	vals := row.Values()
	doc := make(map[string]any, len(cols)+1)
	for i, c := range cols {
		v := vals[i]
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339)
		}
		doc[c] = v
	}
	doc[query.DateComponentsField] = doc["startDate"]
	return doc
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (br bulkResponse) failures() (int, string) {
	var n int
	var reasons []string
	for _, item := range br.Items {
		for _, r := range item {
			if r.Error == nil {
				continue
			}
			n++
			if len(reasons) < 3 {
				reasons = append(reasons, r.Error.Type+": "+r.Error.Reason)
			}
		}
	}
	return n, strings.Join(reasons, "; ")
}
