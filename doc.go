// Package loom is a collection of provider adapters (LLM chat, embeddings,
// speech-to-text, web search, video generation, vector stores) that expose a
// uniform capability interface to a host runtime providing durable execution:
// record-and-replay of remote effects against an append-only operation log.
//
// The interesting parts live in three packages:
//
//   - durable: wraps any fallible remote operation so that its input and
//     outcome are recorded in the host's oplog on first execution and
//     reproduced exactly, with zero network I/O, when a paused workflow is
//     rehydrated.
//   - chat: the durable streaming session and the decoder state machines
//     that normalize provider-specific chunk formats (SSE deltas, tool-call
//     JSON fragments assembled across chunks, NDJSON done-markers) into a
//     canonical event stream. Interrupted streams are resumed across
//     rehydration by re-prompting the provider with the partial result.
//   - wire: the pull-based, readiness-yielding chunk source abstraction the
//     streaming sessions are built on, with SSE, NDJSON and channel adapters.
//
// The oplog itself is a host primitive; loom only consumes the contract
// defined in the durable package. Reference substrates for development and
// tests live under oplog/.
//
// This package holds what every capability shares: the unified error
// taxonomy and environment-based credential lookup.
package loom
