// Package basemux provides an abstraction over the mobile-base transport
// link with the ability for multiple clients to subscribe to telemetry
// lines from the base and send drive commands to a single base device.
package basemux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

var ErrWriteFailed = fmt.Errorf("failed to write to base port")

// BaseMux is a generic base-link multiplexer that allows multiple clients
// to subscribe to telemetry lines from a single base transport.
type BaseMux[T BasePorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// BaseMuxInterface defines the interface for the BaseMux type.
type BaseMuxInterface interface {
	// Subscribe creates a new channel for receiving telemetry lines from the
	// base. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided drive command to the base.
	SendCommand(string) error
	// Monitor reads telemetry lines from the base and fans them out to
	// subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the base port.
	Close() error

	// AttachAdminRoutes attaches debugging endpoints to the given HTTP mux
	// served under /debug/base/.
	AttachAdminRoutes(*http.ServeMux)
}

// NewBaseMux creates a BaseMux instance backed by the given transport.
func NewBaseMux[T BasePorter](port T) *BaseMux[T] {
	return &BaseMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new telemetry subscriber.
func (s *BaseMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the base mux.
func (s *BaseMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand sends a drive command to the base.
func (s *BaseMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n" // commands are newline-terminated
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads telemetry lines from the base and fans them out to
// subscribers. It returns when the context is cancelled, the port hits a
// read error, or Close is called.
func (s *BaseMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so it cannot
	// interfere with the outer loop awaiting lines and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// channel closed means the port drained cleanly
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// skip full subscriber channels so a slow consumer
					// cannot stall base telemetry
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

// Close closes all subscriber channels and the underlying port.
func (s *BaseMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

// AttachAdminRoutes attaches debugging endpoints to the given HTTP mux.
func (s *BaseMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/base/send-command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, fmt.Sprintf("Failed to send command: %v", err), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/debug/base/subscribers", func(w http.ResponseWriter, r *http.Request) {
		s.subscriberMu.Lock()
		n := len(s.subscribers)
		s.subscriberMu.Unlock()
		fmt.Fprintf(w, "subscribers: %d\n", n)
	})
}
