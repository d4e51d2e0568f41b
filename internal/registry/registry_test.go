package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aristath/datagen/internal/backend"
)

func fakeServer(t *testing.T, models string, delay time.Duration) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Write([]byte(models))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestProbe_KeepsLiveInCandidateOrder(t *testing.T) {
	live1 := fakeServer(t, `{"data":[{"id":"model-a"}]}`, 0)
	empty := fakeServer(t, `{"data":[]}`, 0)
	slow := fakeServer(t, `{"data":[{"id":"slow"}]}`, 2*time.Second)
	live2 := fakeServer(t, `{"data":[{"id":"model-b"},{"id":"model-c"}]}`, 50*time.Millisecond)

	cfg := ProbeConfig{
		Candidates:  []string{live2, "http://127.0.0.1:1/v1", empty, slow, live1},
		Timeout:     300 * time.Millisecond,
		Concurrency: 8,
	}

	reg, err := Probe(context.Background(), cfg, backend.NewFactory(backend.Config{APIKey: "EMPTY"}), nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	handles := reg.Handles()
	if len(handles) != 2 {
		t.Fatalf("expected 2 live backends, got %d: %+v", len(handles), handles)
	}
	if handles[0].Address != live2 || handles[1].Address != live1 {
		t.Errorf("pool order should follow candidates, got %s, %s", handles[0].Address, handles[1].Address)
	}
	if handles[0].ModelID != "model-b" || len(handles[0].Models) != 2 {
		t.Errorf("unexpected handle: %+v", handles[0])
	}
}

func TestProbe_NoBackends(t *testing.T) {
	cfg := ProbeConfig{
		Candidates: []string{"http://127.0.0.1:1/v1"},
		Timeout:    200 * time.Millisecond,
	}
	_, err := Probe(context.Background(), cfg, backend.NewFactory(backend.Config{}), nil)
	if !errors.Is(err, ErrNoBackends) {
		t.Fatalf("expected ErrNoBackends, got %v", err)
	}
}

func TestProbe_FactoryErrorIsIsolated(t *testing.T) {
	live := fakeServer(t, `{"data":[{"id":"m"}]}`, 0)
	factory := func(addr string) (backend.Backend, error) {
		if strings.Contains(addr, "bad") {
			return nil, errors.New("boom")
		}
		return backend.New(backend.Config{BaseURL: addr})
	}

	reg, err := Probe(context.Background(), ProbeConfig{Candidates: []string{"bad://x", live}, Timeout: time.Second}, factory, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 backend, got %d", reg.Len())
	}
}

func TestAssign_StableModulo(t *testing.T) {
	pool := []Handle{{Address: "a"}, {Address: "b"}, {Address: "c"}}
	reg, err := New(pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := range 30 {
		want := pool[i%3].Address
		if got := reg.Assign(i).Address; got != want {
			t.Errorf("Assign(%d) = %s, want %s", i, got, want)
		}
		// Same index, same backend, regardless of call order
		if reg.Assign(i).Address != reg.Assign(i).Address {
			t.Errorf("Assign(%d) not stable", i)
		}
	}
}

func TestAssign_Pure(t *testing.T) {
	tests := []struct {
		index, size, want int
	}{
		{0, 2, 0},
		{1, 2, 1},
		{7, 2, 1},
		{100, 3, 1},
		{-1, 3, 2},
	}
	for _, tt := range tests {
		if got := Assign(tt.index, tt.size); got != tt.want {
			t.Errorf("Assign(%d, %d) = %d, want %d", tt.index, tt.size, got, tt.want)
		}
	}
}

func TestNew_EmptyPool(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoBackends) {
		t.Errorf("expected ErrNoBackends, got %v", err)
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates(CandidateSpec{
		Addresses:  []string{"http://gpu-1:8000/v1/", "http://localhost:8001/v1"},
		Host:       "localhost",
		Ports:      PortRange{First: 8000, Last: 8002},
		PathPrefix: "v1",
	})
	want := []string{
		"http://gpu-1:8000/v1",
		"http://localhost:8001/v1",
		"http://localhost:8000/v1",
		"http://localhost:8002/v1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}
}

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		in      string
		want    PortRange
		wantErr bool
	}{
		{"8000-8001", PortRange{8000, 8001}, false},
		{"9000", PortRange{9000, 9000}, false},
		{" 8000 - 8003 ", PortRange{8000, 8003}, false},
		{"", PortRange{}, false},
		{"8001-8000", PortRange{}, true},
		{"abc", PortRange{}, true},
		{"0-10", PortRange{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePortRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if !tt.wantErr && tt.in != "" && got.String() != strings.ReplaceAll(tt.in, " ", "") {
				t.Errorf("String() = %q", got.String())
			}
		})
	}
}
