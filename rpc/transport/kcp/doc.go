// Package kcp implements the datagram backend of the RPC transport: a reliable,
// ordered byte stream per peer built from the kcp ARQ engine on top of UDP.
//
// The server side binds one UDP socket and keys sessions by the "ip:port" of
// the peer. A session is created by the first data segment of a conversation
// and handed to Accept. One update task ticks every session each 10ms, and
// sessions without traffic for SessionIdleSecond are swept. Both peers use the
// same conversation id (KCPConv).
//
// Closing a session sends a 4 byte all-zero datagram, which the peer treats as
// a disconnect. Kcp segments are never that short.
//
// Writes are split into messages of at most 32 KiB so every message fits into
// the receive window; reads return the bytes of the stream regardless of
// message boundaries, so the framing of the base package works unchanged.
package kcp
