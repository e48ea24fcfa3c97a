package yahoo

import (
	"context"
	"net/http"
)

// HTTPClient describes the outbound HTTP client.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
