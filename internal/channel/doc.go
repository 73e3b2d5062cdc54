// Package channel manages the persistent duplex message channel to the
// local agent service.
//
// The channel speaks JSON envelopes of the form {"type": ..., "data": ...}
// over a websocket. When the transport fails the Manager reconnects with
// exponential backoff: the delay after the k-th consecutive failure is
// base * 2^(k-1). Once the configured number of consecutive failures is
// reached the channel is abandoned and only an explicit Reconnect revives
// it.
//
// Inbound messages are dispatched by type to independent handlers. A
// handler that fails or panics is logged and does not affect the channel.
package channel
