package timeouts

import (
	"context"
	"testing"
	"time"
)

// restoreDefaults puts every timeout back to its default after the test.
func restoreDefaults(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		ping, short, medium, long, batch = DefaultPing, DefaultShort, DefaultMedium, DefaultLong, DefaultBatch
	})
}

func TestDefaults(t *testing.T) {
	restoreDefaults(t)
	if got := Short(); got != DefaultShort {
		t.Errorf("Short: got %v, want %v", got, DefaultShort)
	}
	if got := Medium(); got != DefaultMedium {
		t.Errorf("Medium: got %v, want %v", got, DefaultMedium)
	}
}

func TestConfigureFromEnv(t *testing.T) {
	restoreDefaults(t)
	t.Setenv("FORMHUB_TIMEOUT_BATCH", "2m")
	t.Setenv("FORMHUB_TIMEOUT_SHORT", "7s")
	t.Setenv("FORMHUB_TIMEOUT_PING", "nonsense")
	t.Setenv("FORMHUB_TIMEOUT_LONG", "-1s")

	if n := ConfigureFromEnv(); n != 2 {
		t.Errorf("configured: got %d, want 2", n)
	}
	if got := Batch(); got != 2*time.Minute {
		t.Errorf("Batch: got %v", got)
	}
	if got := Short(); got != 7*time.Second {
		t.Errorf("Short: got %v", got)
	}
	if Ping() != DefaultPing || Long() != DefaultLong || Medium() != DefaultMedium {
		t.Errorf("unset or invalid values must keep defaults")
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, nil, "test")
	defer cancel()
	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", ctx.Err())
	}
}
