package shutdown

import (
	"context"
	"io"
	"net/http"
)

// HTTPServerComponent wraps an http.Server for graceful shutdown.
type HTTPServerComponent struct {
	name   string
	server *http.Server
}

// NewHTTPServerComponent creates a new HTTP server shutdown component.
func NewHTTPServerComponent(name string, server *http.Server) *HTTPServerComponent {
	return &HTTPServerComponent{
		name:   name,
		server: server,
	}
}

// Name returns the component name.
func (c *HTTPServerComponent) Name() string {
	return c.name
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (c *HTTPServerComponent) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

// CloserComponent wraps an io.Closer for graceful shutdown.
type CloserComponent struct {
	name   string
	closer io.Closer
}

// NewCloserComponent creates a new closer shutdown component.
func NewCloserComponent(name string, closer io.Closer) *CloserComponent {
	return &CloserComponent{
		name:   name,
		closer: closer,
	}
}

// Name returns the component name.
func (c *CloserComponent) Name() string {
	return c.name
}

// Shutdown closes the underlying resource.
func (c *CloserComponent) Shutdown(ctx context.Context) error {
	return c.closer.Close()
}

// Stopper is implemented by background loops such as the synchronizer.
type Stopper interface {
	Stop()
}

// LoopComponent stops a background loop and waits for its goroutine to exit.
type LoopComponent struct {
	name    string
	stopper Stopper
	done    <-chan struct{}
}

// NewLoopComponent creates a loop shutdown component. done must be closed by
// the loop's goroutine when it returns; a nil done only calls Stop.
func NewLoopComponent(name string, stopper Stopper, done <-chan struct{}) *LoopComponent {
	return &LoopComponent{
		name:    name,
		stopper: stopper,
		done:    done,
	}
}

// Name returns the component name.
func (c *LoopComponent) Name() string {
	return c.name
}

// Shutdown signals the loop to stop and waits until it has returned.
func (c *LoopComponent) Shutdown(ctx context.Context) error {
	c.stopper.Stop()
	if c.done == nil {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
