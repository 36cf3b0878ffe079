// Package pathcache memoizes request handlers under keys built from an
// ordered list of request dimensions, and evicts entries by key-path prefix.
//
// A key is composed from up to seven dimensions: path, method, user,
// headers, get, post and json. Each dimension contributes one or more hashed
// segments in the order given by KeySpec.Order; the hash of the whole
// segment sequence is the cache key. Every composed path is recorded in a
// key tree kept in the store itself, so a later Delete can find every key
// that starts with a given prefix:
//
//	spec := pathcache.KeySpec{
//		User: pathcache.CurrentUser(),
//		Get:  pathcache.Keys("type", "page"),
//	}
//	mux.Handle("/messages", pc.Middleware(spec)(messages))
//
//	// Drop every cached page of sent messages for one user.
//	pc.Delete(ctx, pathcache.Prefix{
//		pathcache.DimPath:    pathcache.Scalar("/messages"),
//		pathcache.DimMethod:  pathcache.Scalar("GET"),
//		pathcache.DimUser:    pathcache.Scalar("alice"),
//		pathcache.DimHeaders: pathcache.Pairs(),
//		pathcache.DimGet:     pathcache.Pairs("type", "sent"),
//	}, pathcache.DeleteOptions{})
//
// Deletion walks the dimensions in the same order the entries were composed
// with and stops at the first dimension missing from the prefix. A
// multi-value dimension given with no pairs, like headers above, matches the
// entries that selected none. Values supplied out of order name a different
// path and delete nothing.
//
// Registry updates are serialized through an advisory lock with a bounded
// wait. The lock is best effort, and concurrent writers may lose updates;
// the lost keys remain valid cache entries that a prefix delete cannot find
// until they are composed again. When reads of the key tree become slow
// repeatedly, the tree is discarded.
package pathcache
