// Package transport carries engine-dispatched actions to remote processes
// over gRPC. Replies and arguments travel as raw interface-description bytes
// through a passthrough codec, so the wire contract is the binary argument
// format rather than protobuf messages.
package transport
