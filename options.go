package tabletclient

import (
	"time"

	"github.com/zikwall/tabletstore-client/src/buffer/cxmem"
	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
)

// DefaultMasterPort is assumed when the master address carries no port.
const DefaultMasterPort = 7051

const (
	defaultAdminTimeout = 5 * time.Second
	defaultBufferSize   = 1000
)

// Options holds client configuration properties
type Options struct {
	// Master address, host or host:port. Required.
	masterAddr string
	// Timeout of a single administrative RPC. Default 5s
	adminTimeout time.Duration
	// Optional injected transport; built internally when absent
	messenger rpc.Messenger
	// Logger with
	logger cx.Logger
	// Debug mode
	isDebug bool
	// Factory for the buffer each fresh batcher accumulates into
	bufferFactory func() cx.Buffer
	// Cap on per-operation errors a session keeps before dropping
	maxPendingErrors int
}

// MasterAddress returns the configured master address
func (o *Options) MasterAddress() string {
	return o.masterAddr
}

// SetMasterAddress sets the master host or host:port
func (o *Options) SetMasterAddress(addr string) *Options {
	o.masterAddr = addr
	return o
}

// AdminTimeout returns the timeout of a single administrative RPC
func (o *Options) AdminTimeout() time.Duration {
	return o.adminTimeout
}

// SetAdminTimeout sets the timeout applied to each administrative RPC
func (o *Options) SetAdminTimeout(timeout time.Duration) *Options {
	o.adminTimeout = timeout
	return o
}

// SetMessenger injects a transport; when unset the client builds the default
// HTTP messenger
func (o *Options) SetMessenger(messenger rpc.Messenger) *Options {
	o.messenger = messenger
	return o
}

// SetLogger installs a custom implementation of the cx.Logger interface
func (o *Options) SetLogger(logger cx.Logger) *Options {
	o.logger = logger
	return o
}

// SetDebugMode set debug mode, for logs and errors
func (o *Options) SetDebugMode(isDebug bool) *Options {
	o.isDebug = isDebug
	return o
}

// SetBufferFactory installs a custom mutation-buffer engine, e.g. the
// redis-backed one from buffer/cxredis
func (o *Options) SetBufferFactory(factory func() cx.Buffer) *Options {
	o.bufferFactory = factory
	return o
}

// SetMaxPendingErrors bounds the per-session error collector
func (o *Options) SetMaxPendingErrors(max int) *Options {
	o.maxPendingErrors = max
	return o
}

// DefaultOptions returns Options object with default values
func DefaultOptions() *Options {
	return &Options{
		adminTimeout: defaultAdminTimeout,
		bufferFactory: func() cx.Buffer {
			return cxmem.NewBuffer(defaultBufferSize)
		},
		maxPendingErrors: 0,
	}
}
