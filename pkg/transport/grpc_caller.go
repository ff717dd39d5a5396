package transport

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/engine"
	"github.com/conclavehq/conclave/pkg/telemetry"
)

const (
	defaultServiceName = "conclave.v1.Remote"
	defaultGrantMethod = "submit_grant"
	defaultCallTimeout = 60 * time.Second
	defaultMaxMsgSize  = 16 << 20

	// paymentHeader carries the optional attached amount; gRPC has no
	// native payment concept.
	paymentHeader = "conclave-payment"
)

// grantType is the wire shape of an upgrade grant submitted to the upload
// collaborator.
var grantType = candid.MustParseType(
	"record { operator : principal; target : principal; expected_hash : text; expected_length : opt nat64; argument : blob }")

// Config holds gRPC caller configuration.
type Config struct {
	// ServiceName is the gRPC service the remote method is invoked on.
	ServiceName string

	// GrantMethod is the method name used to submit upgrade grants to the
	// upload collaborator.
	GrantMethod string

	// CallTimeout bounds a single remote invocation.
	CallTimeout time.Duration

	// MaxMessageSize caps send and receive message sizes in bytes.
	MaxMessageSize int

	// DialOptions are appended to the defaults when dialing, used for
	// custom credentials and in-process test listeners.
	DialOptions []grpc.DialOption
}

// GRPCCaller dispatches calls and upgrade grants to remote processes. It
// satisfies the engine's Caller and GrantSubmitter contracts. Connections
// are dialed lazily and reused per address.
type GRPCCaller struct {
	cfg      Config
	resolver Resolver
	log      *telemetry.Logger

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewGRPCCaller builds a caller over the given resolver.
func NewGRPCCaller(cfg Config, resolver Resolver, log *telemetry.Logger) (*GRPCCaller, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.GrantMethod == "" {
		cfg.GrantMethod = defaultGrantMethod
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMsgSize
	}
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &GRPCCaller{
		cfg:      cfg,
		resolver: resolver,
		log:      log,
		conns:    map[string]*grpc.ClientConn{},
	}, nil
}

// Call invokes method on the target process with raw argument bytes.
func (c *GRPCCaller) Call(ctx context.Context, target candid.Principal, method string, args []byte, payment *uint64) ([]byte, error) {
	addr, err := c.resolver.Resolve(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target: %w", err)
	}
	conn, err := c.conn(addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	if payment != nil {
		ctx = metadata.AppendToOutgoingContext(ctx, paymentHeader, strconv.FormatUint(*payment, 10))
	}

	fullMethod := fmt.Sprintf("/%s/%s", c.cfg.ServiceName, method)
	c.log.Debugf("calling %s on %s at %s", method, target, addr)

	var reply []byte
	if err := conn.Invoke(ctx, fullMethod, &args, &reply); err != nil {
		return nil, fmt.Errorf("remote call %s failed: %w", method, err)
	}
	return reply, nil
}

// SubmitGrant encodes the grant record and submits it to the upload
// collaborator.
func (c *GRPCCaller) SubmitGrant(ctx context.Context, grant engine.Grant) error {
	args, err := encodeGrant(grant)
	if err != nil {
		return fmt.Errorf("failed to encode grant: %w", err)
	}
	if _, err := c.Call(ctx, grant.UploaderID, c.cfg.GrantMethod, args, nil); err != nil {
		return fmt.Errorf("failed to submit grant: %w", err)
	}
	c.log.WithField("target", grant.TargetID.String()).Info("upgrade grant submitted")
	return nil
}

// Close tears down all cached connections.
func (c *GRPCCaller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection to %s: %w", addr, err)
		}
		delete(c.conns, addr)
	}
	return firstErr
}

func (c *GRPCCaller) conn(addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(rawCodec{}),
			grpc.MaxCallRecvMsgSize(c.cfg.MaxMessageSize),
			grpc.MaxCallSendMsgSize(c.cfg.MaxMessageSize),
		),
	}
	opts = append(opts, c.cfg.DialOptions...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	c.conns[addr] = conn
	return conn, nil
}

func encodeGrant(g engine.Grant) ([]byte, error) {
	length := candid.NullValue()
	if g.ExpectedLength != nil {
		length = candid.OptValue(candid.Value{
			Kind: candid.ValNumber,
			Num:  new(big.Int).SetUint64(*g.ExpectedLength),
		})
	}
	value := candid.RecordValue(
		candid.NamedField("operator", candid.PrincipalValue(g.OperatorID)),
		candid.NamedField("target", candid.PrincipalValue(g.TargetID)),
		candid.NamedField("expected_hash", candid.TextValue(g.ExpectedHash)),
		candid.NamedField("expected_length", length),
		candid.NamedField("argument", candid.BlobValue(g.Argument)),
	)
	return candid.EncodeValuesWithTypes([]candid.Value{value}, []*candid.Type{grantType}, nil)
}
