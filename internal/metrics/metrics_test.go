package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	if ActiveStreams == nil || StreamReconnects == nil || BarsForwarded == nil {
		t.Fatal("stream metrics not initialized")
	}
	if ControlMessages == nil || ErrorsPublished == nil || LoggedInClients == nil {
		t.Fatal("control metrics not initialized")
	}
}

func TestRecordHelpers(t *testing.T) {
	RecordReconnect("binance_spot", "trade")
	RecordReconnect("binance_spot", "trade")
	if got := testutil.ToFloat64(StreamReconnects.WithLabelValues("binance_spot", "trade")); got != 2 {
		t.Fatalf("reconnects = %v, want 2", got)
	}

	UpdateActiveStreams("binance_spot", "ohlcv", 3)
	if got := testutil.ToFloat64(ActiveStreams.WithLabelValues("binance_spot", "ohlcv")); got != 3 {
		t.Fatalf("active = %v, want 3", got)
	}

	RecordPublish("md.error", errors.New("boom"))
	if got := testutil.ToFloat64(BusPublished.WithLabelValues("md.error", "error")); got != 1 {
		t.Fatalf("publish errors = %v, want 1", got)
	}

	// 以下只需不 panic
	RecordStreamEnded("binance_spot", "trade", "exhausted")
	RecordBar("binance_spot", "trade")
	RecordCandleDiscarded("binance_spot")
	RecordParseError("binance_spot", "ohlcv")
	RecordWSMessage("binance_spot", "trade", 128)
	RecordSymbolFetch("binance_spot", 20*time.Millisecond, nil)
	RecordControlMessage("ClientLogin")
	RecordErrorPublished("ClientError", "ClientNotAuthorized")
	UpdateLoggedInClients(1)
	RecordDropped("md.data")
}

func TestHealthRoute(t *testing.T) {
	r := NewRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != HealthBody {
		t.Fatalf("body = %q, want %q", w.Body.String(), HealthBody)
	}
}

func TestMetricsRoute(t *testing.T) {
	RecordControlMessage("StartData")
	r := NewRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "databridge_control_messages_total") {
		t.Fatal("metrics output missing databridge_control_messages_total")
	}
}

func TestStartServer(t *testing.T) {
	srv, err := StartServer("127.0.0.1", 0, false)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Online" {
		t.Fatalf("body = %q", body)
	}
}
