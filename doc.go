// File: lixenwraith/conftree/doc.go

// Package conftree provides a concurrent, comment-carrying configuration tree
// for Go applications, with TOML, JSON and YAML files as storage.
//
// Features:
//   - Per-level locking: operations on disjoint branches never wait for each other
//   - Bulk read and update views that make several operations one atomic unit
//   - Comments attached to entries, preserved through YAML files
//   - Snapshot iterators and scoped ForEach callbacks
//   - Accumulators for building content off-line, published with an atomic swap
//   - File loading with replace, merge and add parsing modes
//   - File watching with change notifications
//   - Struct decoding with Scan
//   - ConfigSpec definitions that check and correct a tree against defaults
//
// Quick Start:
//
//	root := conftree.NewNode()
//	root.Set(conftree.MustPath("server.port"), int64(8080))
//	root.SetComment(conftree.MustPath("server.port"), "listening port")
//
//	port, _ := root.GetInt64(conftree.MustPath("server.port"))
//
// Bulk operations:
//
//	err := root.BulkUpdate(func(v *conftree.View) error {
//	    if _, err := v.Set(conftree.MustPath("server.host"), "0.0.0.0"); err != nil {
//	        return err
//	    }
//	    _, err := v.Set(conftree.MustPath("server.port"), int64(9090))
//	    return err
//	})
//
// Inside a bulk callback or a ForEach callback, the node it was started on must
// only be used through the view or the entries handed to the callback. Any
// direct write, to this tree or another, and any direct read that would have to
// wait for a lock, returns ErrScope instead of deadlocking. Bulk operations lock
// the level they are started on; levels below it keep their own locks.
//
// Files:
//
//	fc, err := conftree.NewBuilder().
//	    WithFile("app.yaml").
//	    WithDefaults(map[string]any{"server": map[string]any{"port": 8080}}).
//	    WithWatch(conftree.DefaultWatchOptions()).
//	    Build()
//	if err != nil && !errors.Is(err, conftree.ErrConfigNotFound) {
//	    log.Fatal(err)
//	}
//	defer fc.Close()
//
// Thread Safety:
// All Node operations are safe for concurrent use. Reloads replace the tree
// content atomically, so readers never observe a half-loaded file.
package conftree
