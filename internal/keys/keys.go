package keys

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/subquery/query-subgraph/pkg/filter"
)

// PlanKey accumulates the parts of a list request that decide its statement and folds
// them into one 64-bit cache key. Every part is length-delimited or quoted, so two
// different requests cannot write the same byte stream.
type PlanKey struct {
	digest *xxhash.Digest
}

// NewPlanKey returns an empty key.
func NewPlanKey() *PlanKey {
	return &PlanKey{digest: xxhash.New()}
}

// WriteString appends value to the key. It never fails.
func (k *PlanKey) WriteString(value string) error {
	_, _ = k.digest.WriteString(value)
	return nil
}

func (k *PlanKey) Resource(name string) *PlanKey {
	_ = k.WriteString("res:" + strconv.Quote(name))
	return k
}

// Filter appends the filter tree. Values that cannot be encoded make the request uncacheable.
func (k *PlanKey) Filter(n filter.Node) error {
	return NewFilterHasher(n).Append(k)
}

func (k *PlanKey) Order(o *filter.OrderSpec) *PlanKey {
	if o == nil {
		_ = k.WriteString("/order:-")
		return k
	}
	_ = k.WriteString("/order:" + strconv.Quote(o.Attribute) + " " + o.Direction.String())
	return k
}

// Revision appends the revision selector. An explicit block wins over latest.
func (k *PlanKey) Revision(asOf *int64, latest bool) *PlanKey {
	switch {
	case asOf != nil:
		_ = k.WriteString("/at:" + strconv.FormatInt(*asOf, 10))
	case latest:
		_ = k.WriteString("/latest")
	default:
		_ = k.WriteString("/all")
	}
	return k
}

func (k *PlanKey) Page(limit, skip int) *PlanKey {
	_ = k.WriteString("/page:" + strconv.Itoa(limit) + "," + strconv.Itoa(skip))
	return k
}

// Sum returns the key. Writing more parts afterwards keeps extending the same digest.
func (k *PlanKey) Sum() uint64 {
	return k.digest.Sum64()
}
