// Package protocol owns the client/server message contract.
//
// Ownership boundary:
// - request and response variants (sealed sum types)
// - protobuf wire encode/decode of ClientMessage and ServerMessage
//
// Framing lives in protocol/frame; this package never touches a stream.
// Messages are dynamicpb values over a descriptor set built at init that
// mirrors proto/correlatr.proto.
package protocol
