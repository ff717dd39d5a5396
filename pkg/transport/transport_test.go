package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/engine"
)

func principal(t *testing.T, b ...byte) candid.Principal {
	t.Helper()
	p, err := candid.PrincipalFromBytes(b)
	if err != nil {
		t.Fatalf("Expected principal, got: %v", err)
	}
	return p
}

func TestRawCodec_RoundTrip(t *testing.T) {
	codec := rawCodec{}
	in := []byte{0x44, 0x49, 0x44, 0x4c, 0x00, 0x00}

	data, err := codec.Marshal(&in)
	if err != nil {
		t.Fatalf("Expected marshal to succeed, got: %v", err)
	}
	var out []byte
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Expected unmarshal to succeed, got: %v", err)
	}
	if string(out) != string(in) {
		t.Errorf("Expected bytes to pass through unchanged, got %x", out)
	}

	if _, err := codec.Marshal("not bytes"); err == nil {
		t.Error("Expected marshal of a non-byte value to fail")
	}
}

func TestStaticResolver(t *testing.T) {
	target := principal(t, 1)
	resolver := NewStaticResolver(map[string]string{
		target.String(): "10.0.0.1:9000",
	})

	addr, err := resolver.Resolve(target)
	if err != nil {
		t.Fatalf("Expected resolve to succeed, got: %v", err)
	}
	if addr != "10.0.0.1:9000" {
		t.Errorf("Expected 10.0.0.1:9000, got %s", addr)
	}

	if _, err := resolver.Resolve(principal(t, 9)); err == nil {
		t.Error("Expected an unknown principal to fail resolution")
	}

	resolver.Set(principal(t, 9), "10.0.0.2:9000")
	if _, err := resolver.Resolve(principal(t, 9)); err != nil {
		t.Errorf("Expected resolution after Set, got: %v", err)
	}
}

func TestEncodeGrant_RoundTrip(t *testing.T) {
	length := uint64(4096)
	grant := engine.Grant{
		UploaderID:     principal(t, 1),
		OperatorID:     principal(t, 2),
		TargetID:       principal(t, 3),
		ExpectedHash:   "deadbeef",
		ExpectedLength: &length,
		Argument:       []byte{0x44, 0x49, 0x44, 0x4c, 0x00, 0x00},
	}

	raw, err := encodeGrant(grant)
	if err != nil {
		t.Fatalf("Expected encode to succeed, got: %v", err)
	}

	values, err := candid.DecodeValuesWithTypes(raw, []*candid.Type{grantType}, nil)
	if err != nil {
		t.Fatalf("Expected decode to succeed, got: %v", err)
	}
	if len(values) != 1 || values[0].Kind != candid.ValRecord {
		t.Fatalf("Expected one record argument, got %+v", values)
	}

	fields := map[uint32]candid.Value{}
	for _, f := range values[0].Fields {
		fields[f.ID] = f.Val
	}
	hash := func(name string) uint32 {
		var h uint32
		for i := 0; i < len(name); i++ {
			h = h*223 + uint32(name[i])
		}
		return h
	}
	if got := fields[hash("expected_hash")]; got.Str != "deadbeef" {
		t.Errorf("Expected hash field to round-trip, got %+v", got)
	}
	if got := fields[hash("target")]; !got.Principal.Equal(grant.TargetID) {
		t.Errorf("Expected target field to round-trip, got %+v", got)
	}
	opt := fields[hash("expected_length")]
	if opt.Kind != candid.ValOpt || opt.Inner == nil || opt.Inner.Num.Uint64() != 4096 {
		t.Errorf("Expected length field to round-trip, got %+v", opt)
	}
	if got := fields[hash("argument")]; len(got.Bytes) != 6 {
		t.Errorf("Expected argument blob to round-trip, got %+v", got)
	}
}

func TestEncodeGrant_OmittedLength(t *testing.T) {
	grant := engine.Grant{
		UploaderID:   principal(t, 1),
		OperatorID:   principal(t, 2),
		TargetID:     principal(t, 3),
		ExpectedHash: "00",
	}

	raw, err := encodeGrant(grant)
	if err != nil {
		t.Fatalf("Expected encode to succeed, got: %v", err)
	}
	values, err := candid.DecodeValuesWithTypes(raw, []*candid.Type{grantType}, nil)
	if err != nil {
		t.Fatalf("Expected decode to succeed, got: %v", err)
	}
	for _, f := range values[0].Fields {
		if f.Val.Kind == candid.ValOpt && f.Val.Inner != nil {
			t.Errorf("Expected no opt payload without a pinned length, got %+v", f.Val)
		}
	}
}

func TestGRPCCaller_CallOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	defer lis.Close()

	server := grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(func(_ interface{}, stream grpc.ServerStream) error {
			method, _ := grpc.MethodFromServerStream(stream)
			if method != "/conclave.v1.Remote/transfer" {
				t.Errorf("Expected /conclave.v1.Remote/transfer, got %s", method)
			}
			var req []byte
			if err := stream.RecvMsg(&req); err != nil {
				return err
			}
			// Echo the request back as the reply.
			return stream.SendMsg(&req)
		}),
	)
	go server.Serve(lis)
	defer server.Stop()

	target := principal(t, 7)
	resolver := NewStaticResolver(map[string]string{
		target.String(): "passthrough:///bufnet",
	})
	caller, err := NewGRPCCaller(Config{
		CallTimeout: 5 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	}, resolver, nil)
	if err != nil {
		t.Fatalf("Expected caller to build, got: %v", err)
	}
	defer caller.Close()

	args := []byte{0x44, 0x49, 0x44, 0x4c, 0x00, 0x01, 0x7b, 0x2a}
	reply, err := caller.Call(context.Background(), target, "transfer", args, nil)
	if err != nil {
		t.Fatalf("Expected call to succeed, got: %v", err)
	}
	if string(reply) != string(args) {
		t.Errorf("Expected the echoed reply, got %x", reply)
	}
}
