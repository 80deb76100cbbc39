package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMap(t *testing.T) {
	items := []string{"a", "bb", "", "dddd"}
	outcomes := Map(context.Background(), NewPool(3), items, func(_ context.Context, s string) (int, error) {
		if s == "" {
			return 0, errors.New("empty")
		}
		return len(s), nil
	})

	if len(outcomes) != len(items) {
		t.Fatalf("expected %d outcomes, got %d", len(items), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Item != items[i] {
			t.Errorf("outcome %d: item %q, want %q", i, o.Item, items[i])
		}
	}
	if outcomes[1].Value != 2 || outcomes[3].Value != 4 {
		t.Errorf("unexpected values: %d, %d", outcomes[1].Value, outcomes[3].Value)
	}
	if outcomes[2].GetError() == nil {
		t.Error("expected error for empty item")
	}
}

func TestMap_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := Map(ctx, NewPool(2), []string{"x", "y"}, func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
	for _, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("expected context.Canceled for %q, got %v", o.Item, o.Err)
		}
	}
}
