// Package events defines the wire contract of the realtime gateway.
//
// Inbound frames decode into a closed set of ClientEvent types. Each type
// dispatches itself to the matching Handler method, so adding an event means
// adding a Handler method and every handler implementation stops compiling
// until it handles it. Outbound ServerEvent values are serialized once by
// Encode, which prepends the "type" discriminator.
package events
