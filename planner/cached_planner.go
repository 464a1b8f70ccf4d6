package planner

import (
	"crypto/sha1"
	"encoding/json"
	"sync"
	"time"

	"github.com/buildbuildio/mosaic/format"
)

type hashKey [20]byte

// CachedPlanner memoizes plans of another planner for TTL. Root @skip and
// @include are evaluated while planning, so variables are a part of the key.
type CachedPlanner struct {
	TTL time.Duration

	planner Planner

	cache       map[hashKey]*QueryPlan
	cacheTimers map[hashKey]time.Time

	sync.RWMutex
}

func NewCachedPlanner(ttl time.Duration) *CachedPlanner {
	return &CachedPlanner{
		TTL:         ttl,
		cache:       make(map[hashKey]*QueryPlan),
		cacheTimers: make(map[hashKey]time.Time),
		planner:     RootPlanner{},
	}
}

func (cp *CachedPlanner) WithPlanner(p Planner) *CachedPlanner {
	cp.planner = p
	return cp
}

func (cp *CachedPlanner) hash(ctx *PlanningContext) hashKey {
	h := sha1.New()
	h.Write([]byte(format.FormatOperation(&format.Operation{
		Type:                ctx.Operation.Operation,
		Name:                ctx.Operation.Name,
		VariableDefinitions: ctx.Operation.VariableDefinitions,
		SelectionSet:        ctx.Operation.SelectionSet,
	})))
	if vars := ctx.Variables(); len(vars) > 0 {
		// map keys are sorted by encoding/json
		b, _ := json.Marshal(vars)
		h.Write(b)
	}

	var key hashKey
	copy(key[:], h.Sum(nil))
	return key
}

func (cp *CachedPlanner) clean() {
	var toDelete []hashKey
	ttlnow := time.Now().UTC()
	cp.RLock()
	for hk, v := range cp.cacheTimers {
		if v.Before(ttlnow) {
			toDelete = append(toDelete, hk)
		}
	}
	cp.RUnlock()

	if len(toDelete) > 0 {
		cp.Lock()
		defer cp.Unlock()
		for _, hk := range toDelete {
			delete(cp.cache, hk)
			delete(cp.cacheTimers, hk)
		}
	}
}

func (cp *CachedPlanner) Plan(ctx *PlanningContext) (*QueryPlan, error) {
	hk := cp.hash(ctx)

	cp.clean()
	cp.RLock()
	if res, ok := cp.cache[hk]; ok {
		cp.RUnlock()
		return res, nil
	}
	cp.RUnlock()

	res, err := cp.planner.Plan(ctx)
	if err != nil {
		return nil, err
	}

	cp.Lock()
	defer cp.Unlock()

	cp.cache[hk] = res
	cp.cacheTimers[hk] = time.Now().UTC().Add(cp.TTL)

	return res, nil
}
