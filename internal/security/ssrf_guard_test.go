package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSSRFGuard_Client(t *testing.T) {
	guard := NewSSRFGuard(5 * time.Second)
	client := guard.Client()

	if client == nil {
		t.Fatal("Client() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動するため拒否される。
func TestSSRFGuard_ClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("注文番号,部品番号\n"))
	}))
	defer ts.Close()

	_, err := NewSSRFGuard(5 * time.Second).Client().Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback request, got nil")
	}
}

func TestSSRFGuard_ValidateURL(t *testing.T) {
	guard := NewSSRFGuard(time.Second)

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/orders.csv", false},
		{"http://files.example.org/2024/orders.xlsx", false},
		{"https://93.184.216.34/orders.csv", false},
		{"", true},
		{"   ", true},
		{"ftp://example.com/orders.csv", true},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"https:///orders.csv", true},
		{"http://localhost/orders.csv", true},
		{"http://LOCALHOST:8080/orders.csv", true},
		{"http://printer.localhost/orders.csv", true},
		{"http://127.0.0.1/orders.csv", true},
		{"http://10.1.2.3/orders.csv", true},
		{"http://172.16.0.5/orders.csv", true},
		{"http://192.168.1.10/orders.csv", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://[::1]/orders.csv", true},
		{"http://[fd00::1]/orders.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
