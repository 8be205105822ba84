package metrics

import (
	"context"
	"testing"
)

func TestStartServerDisabledAddrs(t *testing.T) {
	for _, addr := range []string{"", "   ", "off", "OFF", "disabled", "false"} {
		srv, errCh := StartServer(context.Background(), addr)
		if srv != nil || errCh != nil {
			t.Errorf("addr %q: expected disabled listener", addr)
		}
	}
}

func TestStartServerShutdownOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv, errCh := StartServer(ctx, "127.0.0.1:0")
	if srv == nil {
		t.Fatal("expected a running server")
	}
	cancel()

	select {
	case err := <-errCh:
		t.Fatalf("unexpected listener error: %v", err)
	default:
	}
}
