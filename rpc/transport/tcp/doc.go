// Package tcp implements the TCP backend of the RPC transport. It provides the
// connectors the base package needs: a listener for the server and a dialer for
// the client, plus the socket options from SocketConf and TCPConf.
//
// Frames are written in shards of ShardSize bytes, so the peer regularly sees
// partial frames and relies on the reassembly of the base package.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
package tcp
