package vpn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
)

// fakeConsole scripts process output for pattern and handshake tests.
type fakeConsole struct {
	mu      sync.Mutex
	lines   chan string
	alive   bool
	wrote   []string
	onWrite func(line string)
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{lines: make(chan string, 64), alive: true}
}

func (f *fakeConsole) emit(lines ...string) {
	for _, l := range lines {
		f.lines <- l
	}
}

// end closes the output stream, as when the process dies.
func (f *fakeConsole) end() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
	close(f.lines)
}

func (f *fakeConsole) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-f.lines:
		if !ok {
			return "", common.ErrStreamEnded
		}
		return line, nil
	case <-timer.C:
		return "", common.ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeConsole) WriteLine(text string) error {
	f.mu.Lock()
	f.wrote = append(f.wrote, text)
	cb := f.onWrite
	f.mu.Unlock()

	if cb != nil {
		cb(text)
	}
	return nil
}

func (f *fakeConsole) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeConsole) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.wrote))
	copy(out, f.wrote)
	return out
}

func TestExpect_FirstArrivalWins(t *testing.T) {
	con := newFakeConsole()
	con.emit(
		"some unrelated log line",
		"server said AUTH_FAILED",
		"Initialization Sequence Completed",
	)

	name, line, err := Expect(context.Background(), con,
		[]Pattern{patConnected, patAuthFailed}, time.Second)
	if err != nil {
		t.Fatalf("Expect() error = %v", err)
	}
	if name != patAuthFailed.Name {
		t.Errorf("matched %q, want %q: arrival order must win over list order", name, patAuthFailed.Name)
	}
	if line != "server said AUTH_FAILED" {
		t.Errorf("matched line = %q", line)
	}
}

func TestExpect_SameLineListOrderWins(t *testing.T) {
	con := newFakeConsole()
	con.emit("AUTH_FAILED right before Initialization Sequence Completed")

	name, _, err := Expect(context.Background(), con,
		[]Pattern{patConnected, patAuthFailed}, time.Second)
	if err != nil {
		t.Fatalf("Expect() error = %v", err)
	}
	if name != patConnected.Name {
		t.Errorf("matched %q, want %q: list order breaks same-line ties", name, patConnected.Name)
	}
}

func TestExpect_CaseInsensitive(t *testing.T) {
	con := newFakeConsole()
	con.emit("enter auth username:")

	name, _, err := Expect(context.Background(), con,
		[]Pattern{patUsernamePrompt}, time.Second)
	if err != nil {
		t.Fatalf("Expect() error = %v", err)
	}
	if name != patUsernamePrompt.Name {
		t.Errorf("matched %q, want %q", name, patUsernamePrompt.Name)
	}
}

func TestExpect_Timeout(t *testing.T) {
	con := newFakeConsole()

	start := time.Now()
	_, _, err := Expect(context.Background(), con,
		[]Pattern{patConnected}, 200*time.Millisecond)

	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Expect() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Expect() returned after %v, before the timeout", elapsed)
	}
}

func TestExpect_TimeoutSpansWholeScan(t *testing.T) {
	con := newFakeConsole()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				con.emit("noise")
			}
		}
	}()

	start := time.Now()
	_, _, err := Expect(context.Background(), con,
		[]Pattern{patConnected}, 300*time.Millisecond)

	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Expect() error = %v, want ErrTimeout", err)
	}
	// Non-matching lines must not extend the deadline.
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("Expect() took %v; the timeout must span the scan, not one read", elapsed)
	}
}

func TestExpect_StreamEnded(t *testing.T) {
	con := newFakeConsole()
	con.emit("last words")
	con.end()

	_, _, err := Expect(context.Background(), con,
		[]Pattern{patConnected}, time.Second)
	if !errors.Is(err, common.ErrStreamEnded) {
		t.Errorf("Expect() error = %v, want ErrStreamEnded", err)
	}
}

func TestExpect_ContextCanceled(t *testing.T) {
	con := newFakeConsole()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := Expect(ctx, con, []Pattern{patConnected}, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expect() error = %v, want context.Canceled", err)
	}
}
