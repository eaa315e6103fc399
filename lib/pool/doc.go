// Package pool provides the free-lists used by the transport to avoid
// per-message allocation.
//
// Three independent pools exist, each a slice based free-list guarded by a
// single mutex:
//
//   - BufferPool hands out fixed-size byte buffers (one size class, 4 KiB by
//     default) used for raw socket and datagram reads.
//   - StreamPool hands out growable Stream wrappers used to stage encode and
//     decode work.
//   - TransferPool hands out Transfer contexts that bundle a buffer with
//     completion bookkeeping for asynchronous I/O (datagram reads, async sends).
//
// Every pooled object carries an idle flag. Release marks the object idle and
// puts it back on the free-list; releasing an object that is already idle is a
// no-op, so a double release can never insert the same object twice.
//
// Pools are plain values owned by whoever constructs them (usually the server
// or client composition root) and threaded through constructors. There are no
// package level pools.
//
// Usage:
//
//	buffers := pool.NewBufferPool(pool.DefaultBufferSize)
//	buf := buffers.Acquire()
//	n, err := conn.Read(buf.B)
//	// ...
//	buffers.Release(buf)
package pool
