// Package metadata reads the indexer's bookkeeping table and reports deployment, progress
// and health, optionally enriched with what a running indexer says about itself.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/subquery/query-subgraph/internal/build"
	"github.com/subquery/query-subgraph/internal/concurrency"
	"github.com/subquery/query-subgraph/pkg/logger"
	"github.com/subquery/query-subgraph/pkg/storage"
)

// QueryNodeStyle identifies this query service in metadata responses.
const QueryNodeStyle = "subgraph"

const (
	keyDeployments         = "deployments"
	keyIndexerHealthy      = "indexerHealthy"
	keyLastProcessedHeight = "lastProcessedHeight"
	keyRowCountEstimate    = "rowCountEstimate"
	keyQueryNodeVersion    = "queryNodeVersion"
	keyQueryNodeStyle      = "queryNodeStyle"
)

var (
	ErrInvalidChainID = errors.New("invalid chain id")
	ErrInvalidEntry   = errors.New("invalid metadata entry")
)

var chainIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// jsonFields are stored as JSON documents inside a JSON string.
var jsonFields = map[string]struct{}{
	keyDeployments: {},
}

// TableName returns the metadata table of a chain. The empty chain id names the table of
// a single chain project.
func TableName(chainID string) (string, error) {
	if chainID == "" {
		return storage.MetadataTable, nil
	}
	if !chainIDPattern.MatchString(chainID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidChainID, chainID)
	}
	return storage.MetadataTable + "_" + chainID, nil
}

// Block is the indexing progress.
type Block struct {
	Number *int64 `json:"number,omitempty"`
}

// Payload is the subgraph style metadata answer.
type Payload struct {
	Deployment        string `json:"deployment,omitempty"`
	HasIndexingErrors *bool  `json:"hasIndexingErrors,omitempty"`
	Block             *Block `json:"block,omitempty"`
}

// TableEstimate is the planner's row count estimate for one table.
type TableEstimate struct {
	Table    string `json:"table"`
	Estimate int64  `json:"estimate"`
}

// Service answers metadata requests from a datastore.
type Service struct {
	ds      storage.Datastore
	indexer *IndexerClient
	logger  logger.Logger
	group   singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithIndexer enriches Metadata with the status reported by a running indexer.
func WithIndexer(c *IndexerClient) Option {
	return func(s *Service) {
		s.indexer = c
	}
}

// WithLogger sets the logger of the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService returns a Service reading from ds.
func NewService(ds storage.Datastore, opts ...Option) *Service {
	s := &Service{
		ds:     ds,
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payload reads the single chain metadata table. Entries the table does not hold are left
// unset in the payload.
func (s *Service) Payload(ctx context.Context) (*Payload, error) {
	entries, err := s.ds.Metadata(ctx, storage.MetadataTable)
	if err != nil {
		return nil, err
	}

	payload := &Payload{}
	if raw, ok := entries[keyDeployments]; ok {
		deployments, err := decodeDeployments(raw)
		if err != nil {
			return nil, err
		}
		payload.Deployment = latestDeployment(deployments)
	}
	if raw, ok := entries[keyIndexerHealthy]; ok {
		healthy, err := decodeBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, keyIndexerHealthy, err)
		}
		hasErrors := !healthy
		payload.HasIndexingErrors = &hasErrors
	}
	if raw, ok := entries[keyLastProcessedHeight]; ok {
		height, err := decodeInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, keyLastProcessedHeight, err)
		}
		payload.Block = &Block{Number: &height}
	}
	return payload, nil
}

// Metadata returns every entry of a chain's metadata table, decoded, together with the
// table size estimates and the identity of this service. Concurrent calls for the same
// chain share one read, so the returned map must not be modified.
func (s *Service) Metadata(ctx context.Context, chainID string) (map[string]any, error) {
	table, err := TableName(chainID)
	if err != nil {
		return nil, err
	}

	v, err, _ := s.group.Do(table, func() (any, error) {
		return s.load(ctx, table)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (s *Service) load(ctx context.Context, table string) (map[string]any, error) {
	var (
		entries   map[string]json.RawMessage
		estimates []TableEstimate
		status    *IndexerStatus
	)

	tasks := []concurrency.Task{
		func(ctx context.Context) error {
			var err error
			entries, err = s.ds.Metadata(ctx, table)
			return err
		},
	}
	if estimator, ok := s.ds.(storage.RowCountEstimator); ok {
		tasks = append(tasks, func(ctx context.Context) error {
			counts, err := estimator.RowCountEstimates(ctx)
			if err != nil {
				return err
			}
			estimates = sortedEstimates(counts)
			return nil
		})
	}
	if s.indexer != nil {
		tasks = append(tasks, func(ctx context.Context) error {
			st := s.indexer.Status(ctx)
			status = &st
			return nil
		})
	}
	if err := concurrency.All(ctx, len(tasks), tasks...); err != nil {
		return nil, err
	}

	result := make(map[string]any, len(entries)+4)
	if status != nil {
		for key, raw := range status.Meta {
			v, err := decodeValue(key, raw)
			if err != nil {
				s.logger.WarnWithContext(ctx, "ignoring indexer meta entry", zap.String("key", key), zap.Error(err))
				continue
			}
			result[key] = v
		}
	}
	for key, raw := range entries {
		v, err := decodeValue(key, raw)
		if err != nil {
			return nil, err
		}
		result[key] = v
	}
	if status != nil {
		result[keyIndexerHealthy] = status.Healthy
	}
	if estimates != nil {
		result[keyRowCountEstimate] = estimates
	}
	result[keyQueryNodeVersion] = build.Version
	result[keyQueryNodeStyle] = QueryNodeStyle
	return result, nil
}

func sortedEstimates(counts map[string]int64) []TableEstimate {
	out := make([]TableEstimate, 0, len(counts))
	for table, n := range counts {
		out = append(out, TableEstimate{Table: table, Estimate: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

func decodeValue(key string, raw json.RawMessage) (any, error) {
	if _, ok := jsonFields[key]; ok {
		raw = unwrapString(raw)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, key, err)
	}
	return v, nil
}

// unwrapString returns the content of a JSON string, or raw itself when it is not one.
func unwrapString(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	return json.RawMessage(s)
}

func decodeDeployments(raw json.RawMessage) (map[string]string, error) {
	var deployments map[string]string
	if err := json.Unmarshal(unwrapString(raw), &deployments); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, keyDeployments, err)
	}
	return deployments, nil
}

// latestDeployment picks the deployment registered at the highest height. Keys that are
// not heights are ignored.
func latestDeployment(deployments map[string]string) string {
	var (
		latest string
		best   = math.Inf(-1)
	)
	for key, id := range deployments {
		h, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
		if err != nil {
			continue
		}
		if h > best {
			best = h
			latest = id
		}
	}
	return latest
}

func decodeBool(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("cannot use %T as a boolean", v)
	}
}

func decodeInt(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
