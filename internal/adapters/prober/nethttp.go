package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/proxy"
)

type netHTTP struct{}

func (netHTTP) get(ctx context.Context, proxyAddr, url string) ([]byte, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support contexts")
	}

	client := &http.Client{Transport: &http.Transport{
		DialContext:       cd.DialContext,
		DisableKeepAlives: true,
	}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d from %s", errBadStatus, resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}
