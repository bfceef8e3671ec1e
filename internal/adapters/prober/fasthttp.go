package prober

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/proxy"
)

type fastHTTP struct{}

func (fastHTTP) get(ctx context.Context, proxyAddr, url string) ([]byte, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support contexts")
	}

	// DoDeadline bounds only the exchange; the SOCKS handshake runs in Dial
	// and must be bound to ctx as well.
	client := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return cd.DialContext(ctx, "tcp", addr)
		},
		MaxResponseBodySize: maxBodySize,
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetConnectionClose()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	if err := client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: %d from %s", errBadStatus, resp.StatusCode(), url)
	}
	return append([]byte(nil), resp.Body()...), nil
}
