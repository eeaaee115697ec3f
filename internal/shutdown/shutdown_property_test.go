package shutdown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// MockComponent is a mock implementation of the Component interface for testing.
type MockComponent struct {
	name          string
	shutdownDelay time.Duration
	shouldFail    bool
	shutdownCount int32
	log           *orderLog
}

type orderLog struct {
	mu    sync.Mutex
	names []string
}

func (l *orderLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *orderLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func NewMockComponent(name string, delay time.Duration, shouldFail bool) *MockComponent {
	return &MockComponent{
		name:          name,
		shutdownDelay: delay,
		shouldFail:    shouldFail,
	}
}

func (m *MockComponent) Name() string {
	return m.name
}

func (m *MockComponent) Shutdown(ctx context.Context) error {
	atomic.AddInt32(&m.shutdownCount, 1)
	m.log.add(m.name)

	select {
	case <-time.After(m.shutdownDelay):
		if m.shouldFail {
			return errors.New("mock shutdown failed")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockComponent) ShutdownCount() int {
	return int(atomic.LoadInt32(&m.shutdownCount))
}

type stopRecorder struct {
	stopped atomic.Bool
	done    chan struct{}
	lag     time.Duration
}

func (s *stopRecorder) Stop() {
	s.stopped.Store(true)
	go func() {
		time.Sleep(s.lag)
		close(s.done)
	}()
}

func TestShutdownOrderIsReverseRegistration(t *testing.T) {
	log := &orderLog{}
	c := NewCoordinator(WithTimeout(time.Second))
	for _, name := range []string{"database", "synchronizer", "http-server"} {
		comp := NewMockComponent(name, time.Millisecond, false)
		comp.log = log
		c.Register(comp)
	}

	c.Shutdown()
	c.Wait()

	got := log.snapshot()
	want := []string{"http-server", "synchronizer", "database"}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if c.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", c.ExitCode())
	}
}

func TestShutdownContinuesAfterComponentError(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second))
	first := NewMockComponent("first", time.Millisecond, false)
	failing := NewMockComponent("failing", time.Millisecond, true)
	c.Register(first)
	c.Register(failing)

	c.Shutdown()
	c.Wait()

	if first.ShutdownCount() != 1 || failing.ShutdownCount() != 1 {
		t.Fatalf("shutdown counts = %d/%d, want 1/1", first.ShutdownCount(), failing.ShutdownCount())
	}
	if c.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0 for an error inside the deadline", c.ExitCode())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second))
	comp := NewMockComponent("only", time.Millisecond, false)
	c.Register(comp)

	c.Shutdown()
	c.Shutdown()
	c.Wait()

	if comp.ShutdownCount() != 1 {
		t.Errorf("ShutdownCount() = %d, want 1", comp.ShutdownCount())
	}
}

func TestWaitForSignalContextCancelled(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second), WithSignalChannel(make(chan os.Signal)))
	comp := NewMockComponent("only", time.Millisecond, false)
	c.Register(comp)

	ctx, cancel := context.WithCancel(context.Background())
	go c.WaitForSignalContext(ctx)
	cancel()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not start after context cancellation")
	}
	if comp.ShutdownCount() != 1 {
		t.Errorf("ShutdownCount() = %d, want 1", comp.ShutdownCount())
	}
}

func TestLoopComponentWaitsForLoopExit(t *testing.T) {
	rec := &stopRecorder{done: make(chan struct{}), lag: 20 * time.Millisecond}
	comp := NewLoopComponent("synchronizer", rec, rec.done)

	if err := comp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !rec.stopped.Load() {
		t.Error("Stop was not called")
	}
	select {
	case <-rec.done:
	default:
		t.Error("Shutdown returned before the loop exited")
	}
}

func TestLoopComponentRespectsDeadline(t *testing.T) {
	rec := &stopRecorder{done: make(chan struct{}), lag: time.Second}
	comp := NewLoopComponent("synchronizer", rec, rec.done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := comp.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want deadline exceeded", err)
	}
}

func TestPropertyGracefulShutdownBehavior(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("every component is shut down once after a signal", prop.ForAll(
		func(componentDelay time.Duration, numComponents int) bool {
			sigCh := make(chan os.Signal, 1)
			// Sequential shutdown needs room for every component's delay.
			coordinator := NewCoordinator(
				WithTimeout(time.Duration(numComponents+1)*componentDelay+time.Second),
				WithSignalChannel(sigCh),
			)

			components := make([]*MockComponent, numComponents)
			for i := 0; i < numComponents; i++ {
				components[i] = NewMockComponent("component-"+string(rune('A'+i)), componentDelay, false)
				coordinator.Register(components[i])
			}

			go coordinator.WaitForSignal()
			sigCh <- os.Interrupt
			coordinator.Wait()

			for i, comp := range components {
				if comp.ShutdownCount() != 1 {
					t.Logf("component %d shutdown count: %d, expected 1", i, comp.ShutdownCount())
					return false
				}
			}
			return coordinator.ExitCode() == 0
		},
		gen.Int64Range(1, 20).Map(func(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }),
		gen.IntRange(1, 5),
	))

	properties.Property("exit code is 1 when the deadline passes", prop.ForAll(
		func(timeout int64) bool {
			d := time.Duration(timeout) * time.Millisecond
			coordinator := NewCoordinator(WithTimeout(d))
			coordinator.Register(NewMockComponent("slow-component", d*3, false))

			coordinator.Shutdown()
			coordinator.Wait()

			return coordinator.ExitCode() == 1
		},
		gen.Int64Range(10, 50),
	))

	properties.TestingRun(t)
}

func TestHTTPServerComponentDrainsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	var completed atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	coordinator := NewCoordinator(WithTimeout(2 * time.Second))
	coordinator.Register(NewHTTPServerComponent("http-server", server.Config))

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get(server.URL)
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-started
	coordinator.Shutdown()
	coordinator.Wait()

	if !completed.Load() {
		t.Error("in-flight request did not complete before shutdown returned")
	}
	if got := <-status; got != http.StatusOK {
		t.Errorf("status = %d, want %d", got, http.StatusOK)
	}

	client := &http.Client{Timeout: 100 * time.Millisecond}
	if _, err := client.Get(server.URL); err == nil {
		t.Error("request succeeded after shutdown, expected failure")
	}
}
