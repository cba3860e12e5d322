package syncer

import "errors"

// Error kinds returned at the synchronizer boundary. All of them wrap the
// underlying cause, so callers can branch with errors.Is on the kind and
// still inspect the cause chain. None of them corrupts the log: a failed
// operation leaves the in-memory state exactly as it was.
var (
	// ErrLoad means the initial bulk fetch failed; Open may be retried,
	// no partial state is kept.
	ErrLoad = errors.New("conversation load failed")
	// ErrSubscription means the feed or broadcast channel could not be
	// established during Open.
	ErrSubscription = errors.New("realtime subscription failed")
	// ErrValidation means the input was rejected before contacting the
	// store; the compose buffer is untouched.
	ErrValidation = errors.New("invalid message")
	ErrSend       = errors.New("send rejected by store")
	ErrEdit       = errors.New("edit rejected by store")
	ErrDelete     = errors.New("delete rejected by store")
	// ErrClosed is returned by operations invoked after Close.
	ErrClosed = errors.New("synchronizer closed")
)
