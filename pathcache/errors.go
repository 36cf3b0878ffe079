package pathcache

import "errors"

// Configuration errors. These are returned to the caller unchanged.
var (
	// ErrNilStore indicates New was called without a store.
	ErrNilStore = errors.New("pathcache: store is nil")

	// ErrInvalidDimension indicates an unknown or repeated dimension in an
	// order, or a prefix value for an unknown dimension.
	ErrInvalidDimension = errors.New("pathcache: invalid dimension")

	// ErrInvalidUser indicates a user source that cannot be resolved, such as
	// CurrentUser without an identity provider.
	ErrInvalidUser = errors.New("pathcache: invalid user source")
)

// Runtime errors.
var (
	// ErrComposition indicates the request could not be turned into a key.
	// Execute bypasses caching when it sees this error.
	ErrComposition = errors.New("pathcache: key composition failed")

	// ErrResolve indicates a deletion prefix could not be resolved.
	ErrResolve = errors.New("pathcache: prefix resolution failed")

	// ErrRecursionRequired indicates a non-recursive delete matched a subtree.
	ErrRecursionRequired = errors.New("pathcache: prefix matches more than one entry")
)
