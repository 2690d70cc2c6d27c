package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zikwall/tabletstore-client/src/cx"
)

const (
	masterService  = "master"
	tserverService = "tserver"

	requestIDHeader = "X-Request-Id"
)

// MessengerBuilder configures the default HTTP/JSON messenger. The name tags
// outgoing requests so server logs can tell clients apart.
type MessengerBuilder struct {
	name      string
	transport *http.Client
}

func NewMessengerBuilder(name string) *MessengerBuilder {
	return &MessengerBuilder{name: name}
}

// WithTransport replaces the underlying http client.
func (b *MessengerBuilder) WithTransport(transport *http.Client) *MessengerBuilder {
	b.transport = transport
	return b
}

func (b *MessengerBuilder) Build() (Messenger, error) {
	transport := b.transport
	if transport == nil {
		transport = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     time.Minute,
			},
		}
	}
	return &httpMessenger{name: b.name, transport: transport}, nil
}

// httpMessenger speaks a minimal JSON-over-HTTP framing: one POST per call to
// http://<addr>/<service>/<method>, request body in, response body out.
type httpMessenger struct {
	name      string
	transport *http.Client
}

func (m *httpMessenger) MasterProxy(addr string) MasterProxy {
	return &masterProxy{messenger: m, addr: addr}
}

func (m *httpMessenger) TabletServerProxy(addr string) TabletServerProxy {
	return &tserverProxy{messenger: m, addr: addr}
}

func (m *httpMessenger) invoke(addr, service, method string, req, resp interface{}, ctrl *Controller) error {
	body, err := json.Marshal(req)
	if err != nil {
		return cx.Wrap(err, "encode request")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ctrl.Timeout())
	defer cancel()

	url := fmt.Sprintf("http://%s/%s/%s", addr, service, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", m.name)
	httpReq.Header.Set(requestIDHeader, uuid.NewString())

	httpResp, err := m.transport.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return cx.NewErrorf(cx.CodeTimedOut, "%s.%s to %s timed out after %s", service, method, addr, ctrl.Timeout())
		}
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode != http.StatusOK {
		return cx.NewErrorf(cx.CodeIOError, "%s.%s to %s: HTTP %d", service, method, addr, httpResp.StatusCode)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return cx.Wrap(err, "decode response")
	}
	return nil
}
