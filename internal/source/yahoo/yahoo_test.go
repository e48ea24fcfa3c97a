package yahoo_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quotefeed/internal/httpx"
	"quotefeed/internal/market"
	"quotefeed/internal/source"
	"quotefeed/internal/source/yahoo"
)

func respond(status int, body string) func(ctx context.Context, req *http.Request) (*http.Response, error) {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func newProvider(t *testing.T, handler func(ctx context.Context, req *http.Request) (*http.Response, error)) *yahoo.Provider {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := NewMockHTTPClient(ctrl)
	client.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(handler).AnyTimes()
	return yahoo.New(yahoo.Config{}, client, httpx.NewRelays(nil))
}

const quotePayload = `{"chart":{"result":[{
	"meta":{"regularMarketPrice":9825.0,"chartPreviousClose":9750.0},
	"timestamp":[1741744800,1741745100],
	"indicators":{"quote":[{
		"open":[9760.0,9800.0],
		"high":[9810.0,9830.0],
		"low":[9755.0,9790.0],
		"close":[9800.0,9825.0],
		"volume":[120000,95000]
	}]}
}]}}`

func TestFetchQuote_UsesMetaPrice(t *testing.T) {
	p := newProvider(t, respond(http.StatusOK, quotePayload))

	q, err := p.FetchQuote(context.Background(), "BBCA", market.IDX)
	require.NoError(t, err)
	require.Equal(t, 9825.0, q.Price)
	require.InDelta(t, 75.0, q.Change, 1e-9)
	require.InDelta(t, 75.0/9750.0*100, q.ChangePercent, 1e-9)
	require.Equal(t, 9760.0, q.Open)
	require.Equal(t, 9830.0, q.High)
	require.Equal(t, 9755.0, q.Low)
	require.Equal(t, 215000.0, q.Volume)
}

func TestFetchQuote_FallsBackToLastClose(t *testing.T) {
	payload := `{"chart":{"result":[{
		"meta":{},
		"timestamp":[1741744800,1741745100,1741745400],
		"indicators":{"quote":[{
			"open":[9760.0,null,9800.0],
			"high":[9810.0,null,9830.0],
			"low":[9755.0,null,9790.0],
			"close":[9800.0,null,9825.0],
			"volume":[120000,null,95000]
		}]}
	}]}}`
	p := newProvider(t, respond(http.StatusOK, payload))

	q, err := p.FetchQuote(context.Background(), "BBCA", market.IDX)
	require.NoError(t, err)
	require.Equal(t, 9825.0, q.Price)
	// previousClose absent: change degrades to zero, not an error.
	require.Zero(t, q.Change)
	require.Zero(t, q.ChangePercent)
}

func TestFetchQuote_Non2xxIsBadResponse(t *testing.T) {
	p := newProvider(t, respond(http.StatusBadGateway, "upstream sad"))

	_, err := p.FetchQuote(context.Background(), "BBCA", market.IDX)
	var bad *source.BadResponseError
	require.ErrorAs(t, err, &bad)
	require.Equal(t, http.StatusBadGateway, bad.Status)
}

func TestFetchQuote_UnparsableBodyIsBadResponse(t *testing.T) {
	p := newProvider(t, respond(http.StatusOK, "<html>not json</html>"))

	_, err := p.FetchQuote(context.Background(), "BBCA", market.IDX)
	var bad *source.BadResponseError
	require.ErrorAs(t, err, &bad)
}

func TestFetchBars_SkipsNullRows(t *testing.T) {
	payload := `{"chart":{"result":[{
		"meta":{},
		"timestamp":[1741564800,1741651200,1741737600],
		"indicators":{"quote":[{
			"open":[9700.0,null,9800.0],
			"high":[9750.0,null,9850.0],
			"low":[9650.0,null,9780.0],
			"close":[9740.0,null,9825.0],
			"volume":[100000,null,90000]
		}]}
	}]}}`
	p := newProvider(t, respond(http.StatusOK, payload))

	bars, err := p.FetchBars(context.Background(), "BBCA", market.IDX, market.Range1M)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, 9740.0, bars[0].Close)
	require.Equal(t, 9825.0, bars[1].Close)
	require.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestFetchBars_RoutesThroughRelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := NewMockHTTPClient(ctrl)
	client.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			require.Equal(t, "relay.test", req.URL.Host)
			require.Contains(t, req.URL.RawQuery, "BBCA.JK")
			return respond(http.StatusOK, quotePayload)(ctx, req)
		}).
		Times(1)

	p := yahoo.New(yahoo.Config{}, client, httpx.NewRelays([]string{"https://relay.test/?url="}))
	_, err := p.FetchBars(context.Background(), "BBCA", market.IDX, market.Range1M)
	require.NoError(t, err)
}
