package rpc

import (
	"net"
	"strconv"

	"github.com/zikwall/tabletstore-client/src/cx"
)

// Resolver turns a host:port into one or more concrete addresses.
// The client consults it once for the master and per replica afterwards.
type Resolver interface {
	Resolve(addr string, defaultPort int) ([]string, error)
}

type netResolver struct{}

func NewResolver() Resolver {
	return &netResolver{}
}

func (r *netResolver) Resolve(addr string, defaultPort int) ([]string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		port = strconv.Itoa(defaultPort)
	}
	if host == "" {
		return nil, cx.NewInvalidArgument("empty host in address " + addr)
	}
	ips, err := net.LookupHost(host)
	if err != nil {
		return nil, cx.Wrapf(err, "resolve %s", host)
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip, port))
	}
	return addrs, nil
}
