package httpserver

import (
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	echo "github.com/labstack/echo/v4"
)

func upstreamTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// rewrite records the client-facing proto and host, then trims stripPrefix
// and removes the dropQuery parameters from the outgoing URL.
func rewrite(pr *httputil.ProxyRequest, target *url.URL, stripPrefix string, dropQuery []string) {
	proto := "http"
	if pr.In.TLS != nil {
		proto = "https"
	} else if xf := pr.In.Header.Get("X-Forwarded-Proto"); xf != "" {
		proto = xf
	}

	pr.SetURL(target)
	pr.SetXForwarded()
	pr.Out.Header.Set("X-Forwarded-Proto", proto)

	out := pr.Out.URL
	if stripPrefix != "" && strings.HasPrefix(pr.In.URL.Path, stripPrefix) {
		out.Path = singleSlash(target.Path, strings.TrimPrefix(pr.In.URL.Path, stripPrefix))
		out.RawPath = ""
	}

	if len(dropQuery) > 0 {
		q := out.Query()
		for _, k := range dropQuery {
			q.Del(k)
		}
		out.RawQuery = q.Encode()
	}
}

func singleSlash(base, p string) string {
	switch {
	case base == "" || base == "/":
		if p == "" {
			return "/"
		}
		return p
	case p == "":
		return base
	default:
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
	}
}

// newProxy forwards to target. Upgrade requests pass through, so WebSocket
// handshakes can be proxied as well.
func newProxy(target, stripPrefix string, dropQuery ...string) (echo.HandlerFunc, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	p := &httputil.ReverseProxy{
		Rewrite:       func(pr *httputil.ProxyRequest) { rewrite(pr, u, stripPrefix, dropQuery) },
		Transport:     upstreamTransport(),
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.FromContext(r.Context()).Error("proxy_error", "target", u.Host, "path", r.URL.Path, "error", err)
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"upstream unavailable"}`))
		},
	}

	return func(c echo.Context) error {
		p.ServeHTTP(c.Response(), c.Request())
		return nil
	}, nil
}
