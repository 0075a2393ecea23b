// Package remote exposes a ProcedureQueue to out-of-process callers over
// Connect-RPC, the way cmd/kernel exposes the agent runtime to a CLI
// caller, generalized from stdin/stdout to a network boundary.
//
// Callers cannot ship arbitrary executable work across the wire, so Submit
// takes a registered factory name plus a google.protobuf.Struct of
// arguments rather than a closure; RegisterFactory is the RPC-reachable
// counterpart of procedure.Config.Execute, grounded on the tools.Register
// pattern used to expose named, argument-driven capabilities to the agent
// loop.
//
// Messages are google.protobuf well-known types (structpb.Struct,
// emptypb.Empty) rather than a hand-authored generated package: this
// service has no .proto file to run protoc against, and the well-known
// types already satisfy proto.Message, which is all connect.NewUnaryHandler
// and connect.NewServerStreamHandler require.
package remote
