package adminpb

import "encoding/json"

// JSONCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json instead of protobuf wire encoding. BrokerAdminService's
// messages are plain Go structs rather than protoc-generated types
// (there is no protobuf compiler available to generate real .pb.go
// bindings in this environment), so the server is configured with this
// codec via grpc.ForceServerCodec instead of relying on the default
// "proto" codec grpc.NewServer assumes.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSONCodec) Name() string { return "json" }
