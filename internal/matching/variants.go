package matching

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

// DefaultVariantID is the variant used when no experiment is configured.
const DefaultVariantID = "control"

// VariantOutcome is the per-variant success/failure tally.
type VariantOutcome struct {
	VariantID string `json:"variant_id"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
}

// VariantRouter deterministically assigns a scoring-weight variant per user
// and accumulates per-variant outcome counters. It supplies weights to the
// scorer; it never computes compatibility itself.
//
// Counters go to Redis when a client is provided so they survive restarts
// and aggregate across instances; without one they are kept in process.
type VariantRouter struct {
	variants map[string]ScoreWeights
	names    []string // sorted, so hash buckets are stable across restarts

	rdb *redis.Client

	mu    sync.Mutex
	local map[string]*VariantOutcome
}

// ParseVariantWeights parses an experiment definition of the form
// "name:interest,demographic,location,behavioral;name2:...". An empty
// string yields an empty map, which the router treats as control-only.
func ParseVariantWeights(s string) (map[string]ScoreWeights, error) {
	variants := make(map[string]ScoreWeights)
	if strings.TrimSpace(s) == "" {
		return variants, nil
	}

	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, rest, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("variant entry %q: want name:w1,w2,w3,w4", entry)
		}

		parts := strings.Split(rest, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("variant %q: want 4 weights, got %d", name, len(parts))
		}

		values := make([]float64, 4)
		for i, part := range parts {
			value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, fmt.Errorf("variant %q: bad weight %q", name, part)
			}
			values[i] = value
		}

		variants[name] = ScoreWeights{
			Interest:    values[0],
			Demographic: values[1],
			Location:    values[2],
			Behavioral:  values[3],
		}
	}

	return variants, nil
}

// NewVariantRouter builds a router over the given weight sets. An empty map
// yields a single control variant with the default weights.
func NewVariantRouter(variants map[string]ScoreWeights, rdb *redis.Client) (*VariantRouter, error) {
	if len(variants) == 0 {
		variants = map[string]ScoreWeights{DefaultVariantID: DefaultWeights()}
	}

	names := make([]string, 0, len(variants))
	for name, weights := range variants {
		if !weights.Valid() {
			return nil, fmt.Errorf("variant %q: weights sum to %.6f, want 1.0", name, weights.Sum())
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &VariantRouter{
		variants: variants,
		names:    names,
		rdb:      rdb,
		local:    make(map[string]*VariantOutcome),
	}, nil
}

// AssignVariant maps a user to a variant. The assignment is a pure function
// of the user id and the configured variant names: stable across calls,
// restarts and instances.
func (v *VariantRouter) AssignVariant(userID int64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", userID)
	return v.names[h.Sum64()%uint64(len(v.names))]
}

// WeightsFor returns the weight set for a user's assigned variant.
func (v *VariantRouter) WeightsFor(userID int64) ScoreWeights {
	return v.variants[v.AssignVariant(userID)]
}

func variantOutcomeKey(variantID string) string {
	return "matching:variant:" + variantID + ":outcomes"
}

// RecordOutcome tallies one match outcome against a variant. Unknown
// variant ids are rejected so retired experiments don't accrete counters.
func (v *VariantRouter) RecordOutcome(ctx context.Context, variantID string, matchID int64, success bool) error {
	if _, ok := v.variants[variantID]; !ok {
		return fmt.Errorf("unknown variant %q", variantID)
	}

	field := "failures"
	if success {
		field = "successes"
	}

	if v.rdb != nil {
		return v.rdb.HIncrBy(ctx, variantOutcomeKey(variantID), field, 1).Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	outcome, ok := v.local[variantID]
	if !ok {
		outcome = &VariantOutcome{VariantID: variantID}
		v.local[variantID] = outcome
	}
	if success {
		outcome.Successes++
	} else {
		outcome.Failures++
	}

	return nil
}

// Outcomes returns the tallies for every configured variant.
func (v *VariantRouter) Outcomes(ctx context.Context) ([]*VariantOutcome, error) {
	outcomes := make([]*VariantOutcome, 0, len(v.names))

	for _, name := range v.names {
		if v.rdb == nil {
			v.mu.Lock()
			outcome, ok := v.local[name]
			if !ok {
				outcome = &VariantOutcome{VariantID: name}
			}
			copied := *outcome
			v.mu.Unlock()
			outcomes = append(outcomes, &copied)
			continue
		}

		fields, err := v.rdb.HGetAll(ctx, variantOutcomeKey(name)).Result()
		if err != nil {
			return nil, err
		}

		outcome := &VariantOutcome{VariantID: name}
		outcome.Successes, _ = strconv.ParseInt(fields["successes"], 10, 64)
		outcome.Failures, _ = strconv.ParseInt(fields["failures"], 10, 64)
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
