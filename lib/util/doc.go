// Package util contains small data structures shared by the transport and the
// command line tools.
//
//   - mpsc: a lock-free multi-producer single-consumer queue. The server uses it
//     to funnel messages from all connections into one dispatcher goroutine.
//   - deadlineheap: a min-heap of string keys ordered by deadline with O(1) key
//     lookup. The datagram backend uses it to find idle sessions.
//   - stats: summary statistics (mean, deviation, min/max ratio) used by the
//     bench command to report fairness between workers.
package util
