package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// exchangeInfoResp 只取交易对名称与状态。现货/U本位使用 status，币本位使用 contractStatus。
type exchangeInfoResp struct {
	Symbols []struct {
		Symbol         string `json:"symbol"`
		Status         string `json:"status"`
		ContractStatus string `json:"contractStatus"`
	} `json:"symbols"`
}

// SymbolFetcher 通过 exchangeInfo 拉取交易对列表。HTTPClient 可注入 httptest。
type SymbolFetcher struct {
	BaseURL    string
	Path       string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Retry      RetryConfig
}

// NewSymbolFetcher 创建拉取器；rps<=0 时不限速
func NewSymbolFetcher(baseURL, path string, timeout time.Duration, rps float64, burst int) *SymbolFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &SymbolFetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Path:       path,
		HTTPClient: &http.Client{Timeout: timeout},
		Retry:      DefaultRetryConfig(),
	}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		f.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return f
}

// tradable 缺少状态字段时视为可交易
func tradable(status, contractStatus string) bool {
	if status == "" {
		status = contractStatus
	}
	return status == "" || strings.EqualFold(status, "TRADING")
}

// FetchSymbols 返回所有 TRADING 状态的交易对（大写、排序、去重）
func (f *SymbolFetcher) FetchSymbols(ctx context.Context) ([]string, error) {
	if f == nil || f.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}

	var body []byte
	err := WithRetry(ctx, func() error {
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		b, err := f.get(ctx, f.BaseURL+f.Path)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, f.Retry)
	if err != nil {
		return nil, fmt.Errorf("fetch exchangeInfo: %w", err)
	}

	var info exchangeInfoResp
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	seen := make(map[string]struct{}, len(info.Symbols))
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		sym := strings.ToUpper(strings.TrimSpace(s.Symbol))
		if sym == "" || !tradable(s.Status, s.ContractStatus) {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("exchangeInfo returned no symbols")
	}
	sort.Strings(out)
	return out, nil
}

func (f *SymbolFetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
			RetryAfter: parseRetryAfter(resp),
		}
	}
	return body, nil
}
