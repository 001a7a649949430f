package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsStale(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("Cannot find context with specified id"), true},
		{errors.New("element is detached from the document"), true},
		{fmt.Errorf("click #title: %w", errors.New("target closed")), true},
		{errors.New("element not found: #title"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsStale(c.err); got != c.want {
			t.Errorf("IsStale(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("element not found: #title"), true},
		{errors.New("navigate: timeout"), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("Cannot find context with specified id"), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("invalid selector"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
