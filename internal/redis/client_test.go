package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gravito-framework/statbeacon-go/pkg/types"
)

func TestNewPublisher(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid url", "redis://localhost:6379/1", false},
		{"empty url", "", true},
		{"wrong scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPublisher(tt.url, time.Minute)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if p != nil {
				p.Close()
			}
		})
	}
}

func TestPublish(t *testing.T) {
	mr := miniredis.RunT(t)

	p, err := NewPublisher("redis://"+mr.Addr(), 15*time.Second)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	report := types.Report{Name: "web-1", Level: types.LevelInfo, CPU: "10.00%", Mem: "20.00%", Temp: "N/A", Time: "17/10/2026, 08:30:00"}
	if err := p.Publish(context.Background(), report); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw, err := mr.Get(Key("web-1"))
	if err != nil {
		t.Fatalf("Expected key %s: %v", Key("web-1"), err)
	}
	var got types.Report
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != report {
		t.Errorf("Expected %+v, got %+v", report, got)
	}
	if ttl := mr.TTL(Key("web-1")); ttl != 15*time.Second {
		t.Errorf("Expected TTL 15s, got %v", ttl)
	}

	mr.FastForward(16 * time.Second)
	if mr.Exists(Key("web-1")) {
		t.Error("Expected heartbeat to expire")
	}
}

func TestPublishUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p, err := NewPublisher("redis://"+addr, time.Second)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Publish(ctx, types.Report{Name: "web-1"}); err == nil {
		t.Error("Expected error when Redis is unreachable")
	}
}

func TestList(t *testing.T) {
	mr := miniredis.RunT(t)

	p, err := NewPublisher("redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	for _, name := range []string{"web-2", "db-1", "web-1"} {
		if err := p.Publish(ctx, types.Report{Name: name, Level: types.LevelInfo}); err != nil {
			t.Fatalf("Publish %s: %v", name, err)
		}
	}
	mr.Set(KeyPrefix+"broken", "{not json")
	mr.Set("unrelated:key", "x")

	reports, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var names []string
	for _, r := range reports {
		names = append(names, r.Name)
	}
	want := []string{"db-1", "web-1", "web-2"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
			break
		}
	}
}
