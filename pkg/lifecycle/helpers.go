package lifecycle

import (
	"strconv"
	"strings"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// mutateStore applies mutate to the current persisted value of
// (cluster, name), retrying on a lost compare-and-set race. Callers must
// already hold the per-store lock for (cluster, name): under that lock a
// CAS conflict can only come from a non-lifecycle writer (none exist
// today), so the retry loop exists for defense-in-depth rather than
// expected contention.
func (e *Engine) mutateStore(cluster, name string, mutate func(*types.Store) (*types.Store, error)) (*types.Store, error) {
	for {
		_, version, err := e.deps.Metadata.GetStore(cluster, name)
		if err != nil {
			return nil, err
		}
		updated, _, err := e.deps.Metadata.UpdateStore(cluster, name, version, mutate)
		if err == nil {
			return updated, nil
		}
		// Only a lost CAS race is retryable; a Conflict raised by the
		// mutate callback itself would fail the same way every time.
		if verrors.IsTagged(err, verrors.Conflict, "VersionMismatch") {
			continue
		}
		return nil, err
	}
}

// cloneStore deep-copies a Store so a failed multi-field update can
// restore the pre-image exactly.
func cloneStore(s *types.Store) *types.Store {
	cp := *s
	if len(s.Versions) > 0 {
		cp.Versions = make([]*types.Version, len(s.Versions))
		for i, v := range s.Versions {
			vc := *v
			cp.Versions[i] = &vc
		}
	}
	if s.HybridConfig != nil {
		hc := *s.HybridConfig
		cp.HybridConfig = &hc
	}
	return &cp
}

// withoutVersion returns a new Versions slice with number removed,
// never mutating the backing array of the input slice: Store snapshots
// handed out by the Metadata Store are defensive clones only at the
// struct level, so slice mutation in place could alias a reader's copy.
func withoutVersion(versions []*types.Version, number int) ([]*types.Version, bool) {
	out := make([]*types.Version, 0, len(versions))
	removed := false
	for _, v := range versions {
		if v.Number == number {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

// withAppendedVersion returns a new Versions slice with v appended,
// again never mutating the input's backing array.
func withAppendedVersion(versions []*types.Version, v *types.Version) []*types.Version {
	out := make([]*types.Version, len(versions)+1)
	copy(out, versions)
	out[len(versions)] = v
	return out
}

// parseVersionTopic reports whether topic is a version topic
// ("{storeName}_v{n}") belonging to storeName, returning its version
// number if so.
func parseVersionTopic(topic, storeName string) (int, bool) {
	prefix := storeName + "_v"
	if !strings.HasPrefix(topic, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(topic[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

// isReservedStoreName reports whether name collides with the system
// store topic namespace and so can never be used for a user store.
func isReservedStoreName(name string) bool {
	for _, prefix := range reservedStoreNamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
