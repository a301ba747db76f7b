package horizon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
)

func TestFetchAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/accounts/GABC" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"account_id":"GABC","sequence":"4130000000000000","data":{"note_1":"aGVsbG8="}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL)
		snapshot, err := client.FetchAccount(context.Background(), "GABC")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snapshot.Sequence != 4130000000000000 {
			t.Errorf("expected sequence 4130000000000000, got %d", snapshot.Sequence)
		}
		if snapshot.Data["note_1"] != "aGVsbG8=" {
			t.Errorf("expected transport value for note_1, got %q", snapshot.Data["note_1"])
		}
	})

	t.Run("no data entries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"account_id":"GABC","sequence":"7"}`))
		}))
		defer server.Close()

		snapshot, err := NewClient(server.URL).FetchAccount(context.Background(), "GABC")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snapshot.Data == nil {
			t.Fatal("expected non-nil data map")
		}
		if len(snapshot.Data) != 0 {
			t.Errorf("expected empty data map, got %v", snapshot.Data)
		}
	})

	t.Run("account not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"title":"Resource Missing","status":404}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchAccount(context.Background(), "GMISSING")
		if !errors.HasCode(err, errors.CodeAccountNotFound) {
			t.Fatalf("expected ACCOUNT_NOT_FOUND, got %v", err)
		}
	})

	t.Run("gateway down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchAccount(context.Background(), "GABC")
		if !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
		}
	})

	t.Run("client error is not a rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"title":"Rate Limit Exceeded","status":429}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchAccount(context.Background(), "GABC")
		if !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // refuse connections

		_, err := NewClient(server.URL).FetchAccount(context.Background(), "GABC")
		if !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
		}
	})

	t.Run("malformed sequence", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"account_id":"GABC","sequence":"not-a-number"}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchAccount(context.Background(), "GABC")
		if !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
		}
	})
}

func TestSubmit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.PostForm.Get("tx") != "ZW52ZWxvcGU=" {
				t.Errorf("unexpected tx field %q", r.PostForm.Get("tx"))
			}
			w.Write([]byte(`{"hash":"deadbeef","ledger":12345}`))
		}))
		defer server.Close()

		result, err := NewClient(server.URL).Submit(context.Background(), "ZW52ZWxvcGU=")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Hash != "deadbeef" {
			t.Errorf("expected hash deadbeef, got %q", result.Hash)
		}
		if result.Ledger != 12345 {
			t.Errorf("expected ledger 12345, got %d", result.Ledger)
		}
	})

	t.Run("ordering conflict", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"title":"Transaction Failed","extras":{"result_codes":{"transaction":"tx_bad_seq"}}}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Submit(context.Background(), "ZW52")
		if !errors.HasCode(err, errors.CodeOrderingConflict) {
			t.Fatalf("expected ORDERING_CONFLICT, got %v", err)
		}
	})

	t.Run("rejected by ledger", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"title":"Transaction Failed","extras":{"result_codes":{"transaction":"tx_bad_auth","operations":["op_malformed"]}}}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Submit(context.Background(), "ZW52")
		if !errors.HasCode(err, errors.CodeRejectedByLedger) {
			t.Fatalf("expected REJECTED_BY_LEDGER, got %v", err)
		}
		if got := err.Error(); !strings.Contains(got, "tx_bad_auth") {
			t.Errorf("expected underlying result code in message, got %q", got)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := NewClient(server.URL).Submit(context.Background(), "ZW52")
		if !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
		}
	})

	t.Run("missing hash", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Submit(context.Background(), "ZW52")
		if !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
		}
	})
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", client.baseURL)
	}
	client = NewClient("http://localhost:8000/")
	if client.baseURL != "http://localhost:8000" {
		t.Errorf("expected trailing slash trimmed, got %q", client.baseURL)
	}
}
