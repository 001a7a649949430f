package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestExecute_PassesThroughWhenClosed(t *testing.T) {
	cb := New(DefaultConfig("test"), nil)

	got, err := cb.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %v, want ok", got)
	}
	if cb.IsOpen() {
		t.Error("breaker must stay closed after success")
	}
}

func TestExecute_TripsAfterFailureRatio(t *testing.T) {
	cfg := Config{
		Name:             "trip-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      4,
	}
	cb := New(cfg, nil)

	boom := errors.New("boom")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, boom
		})
	}

	if !cb.IsOpen() {
		t.Fatalf("breaker state = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) {
		t.Error("fn must not run while the circuit is open")
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}

func TestExecute_StaysClosedBelowMinRequests(t *testing.T) {
	cfg := DefaultConfig("min-test")
	cfg.MinRequests = 10
	cb := New(cfg, nil)

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, errors.New("boom")
		})
	}
	if cb.IsOpen() {
		t.Error("breaker must not trip below MinRequests")
	}
}

func TestLLMAPIConfig(t *testing.T) {
	cfg := LLMAPIConfig()
	if cfg.Name != "llm-api" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
}
