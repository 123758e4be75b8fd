package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kallevis/talkdown/pkg/provider/llm"
	llmmock "github.com/kallevis/talkdown/pkg/provider/llm/mock"
)

func TestFallbackGroupPrimaryWins(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", Config{MaxFailures: 1})
	fg.AddFallback("backup", "backup")

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		return v, nil
	})
	if err != nil || got != "primary" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestFallbackGroupFailsOver(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", Config{MaxFailures: 1, Cooldown: time.Hour})
	fg.AddFallback("backup", "backup")

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "primary" {
			return "", errBoom
		}
		return v, nil
	})
	if err != nil || got != "backup" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestFallbackGroupAllFailed(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", Config{MaxFailures: 1, Cooldown: time.Hour})
	fg.AddFallback("backup", "backup")

	_, err := ExecuteWithResult(fg, func(string) (string, error) {
		return "", errBoom
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsOpenBreaker(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", Config{MaxFailures: 1, Cooldown: time.Hour})
	fg.AddFallback("backup", "backup")

	// Trip the primary's breaker.
	ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "primary" {
			return "", errBoom
		}
		return v, nil
	})

	primaryCalls := 0
	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "primary" {
			primaryCalls++
		}
		return v, nil
	})
	if err != nil || got != "backup" {
		t.Fatalf("got %q, %v", got, err)
	}
	if primaryCalls != 0 {
		t.Errorf("primary called %d times despite open breaker", primaryCalls)
	}
}

func TestOracleFailover(t *testing.T) {
	primary := &llmmock.Provider{Err: errBoom}
	backup := &llmmock.Provider{
		Response: &llm.CompletionResponse{Content: "from backup"},
	}

	f := NewOracleFailover(primary, Config{MaxFailures: 1, Cooldown: time.Hour})
	f.AddFallback(backup)

	if got := f.Name(); got != "failover/mock" {
		t.Errorf("Name = %q", got)
	}

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{SystemPrompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("content = %q", resp.Content)
	}
	if primary.CallCount() != 1 || backup.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), backup.CallCount())
	}

	// Primary's breaker is open now; only the backup serves.
	if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary called again despite open breaker")
	}
}
