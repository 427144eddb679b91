package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterkuimelis/crib/internal/log"
	cnet "github.com/peterkuimelis/crib/internal/net"
)

func testScript() *cnet.Script {
	return cnet.ScriptFromMessages("web", []cnet.ServerMessage{
		cnet.Signal(cnet.WaitName),
		cnet.NewPlayerJoin("dana", 1, 2),
		cnet.Signal(cnet.WaitDeal),
		cnet.Signal(cnet.Dealing),
		cnet.Signal(cnet.Disconnect),
	})
}

func TestScriptEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewServer(testScript(), zerolog.Nop()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/script")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON, got %q", ct)
	}

	var info ScriptInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != "web" || info.Sends != 5 || info.Expects != 2 {
		t.Errorf("unexpected script info %+v", info)
	}
	if len(info.Steps) != 7 || info.Steps[1].Expect != "name" {
		t.Errorf("unexpected steps %+v", info.Steps)
	}
}

func TestKindsEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewServer(testScript(), zerolog.Nop()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/kinds")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var info KindsInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(info.Server) != 27 || info.Server[0] != "denied_table_full" || info.Server[26] != "disconnect" {
		t.Errorf("unexpected server kinds %v", info.Server)
	}
	if len(info.Client) != 8 || info.Client[7] != "play_score" {
		t.Errorf("unexpected client kinds %v", info.Client)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(NewServer(testScript(), zerolog.Nop()).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/script", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

// TestWebSocketSession runs a real client session against the hosted script.
func TestWebSocketSession(t *testing.T) {
	ts := httptest.NewServer(NewServer(testScript(), zerolog.Nop()).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, err := cnet.DialAddr(ctx, url)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	var out strings.Builder
	events := log.NewMemoryLogger()
	client := cnet.NewClient(conn, cnet.NewTerminal(strings.NewReader("\n"), &out), cnet.ClientConfig{
		Username: "dana",
		Logger:   events,
	})
	if err := client.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var sent []string
	for _, e := range events.EventsOfType(log.EventSent) {
		sent = append(sent, e.Details)
	}
	if strings.Join(sent, ",") != "name{dana},confirmation" {
		t.Errorf("unexpected sends %v", sent)
	}
	for _, line := range []string{"dana has joined the game; 1 of 2", "The hands are being dealt", "Game has ended"} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("Expected %q in output:\n%s", line, out.String())
		}
	}
}
