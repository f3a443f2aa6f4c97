package gallery

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Addresser turns a stored identifier into the public URL clients fetch it
// from. Addresses are derived at response time and never persisted.
type Addresser struct {
	Host string
	Port int
}

// NewAddresser returns an Addresser for a fixed host and port.
func NewAddresser(host string, port int) Addresser {
	return Addresser{Host: host, Port: port}
}

// FromHostHeader builds an Addresser from an HTTP Host header value.
// A header without a port uses fallbackPort.
func FromHostHeader(hostport string, fallbackPort int) Addresser {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Addresser{Host: strings.Trim(hostport, "[]"), Port: fallbackPort}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = fallbackPort
	}
	return Addresser{Host: host, Port: port}
}

// Address returns http://<host>:<port>/uploads/<id>.
func (a Addresser) Address(id string) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(a.Host, strconv.Itoa(a.Port)),
		Path:   "/uploads/" + id,
	}
	return u.String()
}

// Addresses maps ids to addresses, preserving order.
func (a Addresser) Addresses(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = a.Address(id)
	}
	return out
}
