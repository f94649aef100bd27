package xquery

import (
	"maps"

	"github.com/rcrowley/go-metrics"
)

var (
	counters = metrics.NewRegistry()

	kindCounters [kindCount]metrics.Counter

	typeCacheHit    = metrics.GetOrRegisterCounter("seqtype.hit", counters)
	typeCacheMiss   = metrics.GetOrRegisterCounter("seqtype.miss", counters)
	moduleCacheHit  = metrics.GetOrRegisterCounter("module.hit", counters)
	moduleCacheMiss = metrics.GetOrRegisterCounter("module.miss", counters)
	loaderHit       = metrics.GetOrRegisterCounter("loader.hit", counters)
	loaderMiss      = metrics.GetOrRegisterCounter("loader.miss", counters)
	unsupportedHit  = metrics.GetOrRegisterCounter("unsupported", counters)
)

func init() {
	for k := KindUnknown; k < kindCount; k++ {
		kindCounters[k] = metrics.GetOrRegisterCounter("eval."+k.String(), counters)
	}
}

func countKind(k Kind) {
	if k < 0 || k >= kindCount {
		k = KindUnknown
	}
	kindCounters[k].Inc(1)
}

// Metrics returns the current value of the evaluation counters: one per
// expression kind, plus the hits and misses of the caches.
func Metrics() map[string]uint64 {
	list := make(map[string]uint64)
	counters.Each(func(name string, i interface{}) {
		if c, ok := i.(metrics.Counter); ok {
			list[name] = uint64(c.Count())
		}
	})
	return list
}

// MetricsDelta returns the counters that changed between two snapshots
// taken with Metrics.
func MetricsDelta(before, after map[string]uint64) map[string]uint64 {
	diff := maps.Clone(after)
	for k, v := range before {
		diff[k] -= v
		if diff[k] == 0 {
			delete(diff, k)
		}
	}
	return diff
}
