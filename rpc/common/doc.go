// Package common provides the configuration structures and utilities shared
// by the server, the client and the transport packages.
//
// The package focuses on:
//   - Configuration structures for server and client components
//   - Codec settings (compression, encryption, checksum, byte order) that both
//     peers of a connection must agree on
//   - Custom logging implementation integrated with the dragonboat logger facade
//   - Metric names and the Prometheus exposition endpoint
//
// Key Components:
//
//   - ServerConfig: listen endpoint, transport backend, key material, codec
//     settings, write sharding, dispatch mode, datagram session parameters,
//     socket options and logging.
//
//   - ClientConfig: endpoint, transport backend, server public key, codec
//     settings, reply timeout and socket options.
//
//   - Logger: custom ILogger implementation installed as the dragonboat logger
//     factory, giving every package the same "LEVEL | name | message" layout.
//
//   - Metrics: counters for frames, bytes, handshakes, connections and protocol
//     errors, exposed in the Prometheus text format.
package common
