/*
Package verrors defines the error taxonomy shared by every Venice cluster
controller component.

Every package that talks to an external backend (pkg/storage, pkg/coordinator,
pkg/topics, pkg/mastership) or enforces a data invariant (pkg/lifecycle) wraps
its errors into a *verrors.Error carrying a Kind. Callers use errors.As or the
Is/Retryable helpers instead of matching error strings.

# Usage

Wrapping an error:

	if err != nil {
		return verrors.New(verrors.MetadataUnavailable, "storage.GetStore", err)
	}

Tagging a narrower failure:

	return verrors.Tagged(verrors.Conflict, "storage.AddValueSchema", "SchemaIncompatible", nil)

Branching on kind:

	if verrors.Is(err, verrors.NotLeader) {
		// not retryable on this node; re-resolve the leader instead
		return redirectToLeader(err)
	}

Deciding whether to retry:

	if verrors.Retryable(err) {
		time.Sleep(backoff)
		continue
	}

# Kind Reference

  - NotLeader: the local node is not master for the target cluster; never
    retryable here, the caller must consult discovery for the leader
  - NotFound: store/version/schema/config record does not exist
  - AlreadyExists: create attempted on an in-use name
  - Conflict: compare-and-set failure, incompatible schema, rejected transition
  - CoordinatorUnavailable: resource coordinator backend unreachable
  - TopicManagerUnavailable: topic manager backend unreachable
  - MetadataUnavailable: metadata store backend unreachable
  - JoinTimeout: mastership controller failed to reach leadership in time
  - Fatal: never retry
*/
package verrors
