package controllerclient

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered as a grpc encoding.Codec so cross-controller
// snapshot RPCs can be issued without generated protobuf stubs: admin
// RPC/codegen is out of scope for this controller, so requests are plain
// Go structs marshaled through grpc.ClientConn.Invoke directly.
const jsonCodecName = "venice-json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
