package server

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Submitter is the slice of the job queue the servers need.
type Submitter interface {
	Submit(payload string) (<-chan error, error)
}

// maxJobBytes bounds a single raw-port job. Receipts are small; anything
// bigger is a misdirected client.
const maxJobBytes = 1 << 20

// TCPServer accepts raw print jobs on a TCP port, one job per connection:
// the client writes the payload, closes its side, and the whole body is
// submitted to the queue as a single job.
type TCPServer struct {
	queue    Submitter
	listener net.Listener
	address  string
	mu       sync.Mutex
	running  bool
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewTCPServer creates a raw-port server feeding the given queue.
func NewTCPServer(q Submitter, address string, log zerolog.Logger) *TCPServer {
	return &TCPServer{
		queue:   q,
		address: address,
		log:     log.With().Str("component", "tcp").Logger(),
	}
}

// Start starts the server and blocks until Stop is called.
func (s *TCPServer) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.acceptConnections()
	return nil
}

// StartAsync starts the server in a goroutine (non-blocking).
func (s *TCPServer) StartAsync() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()
	return nil
}

func (s *TCPServer) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running = true
	s.log.Info().Str("addr", s.address).Msg("raw port listening")
	return nil
}

// acceptConnections handles incoming client connections.
func (s *TCPServer) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()

			if !running {
				return
			}
			s.log.Error().Err(err).Msg("accept failed")
			continue
		}

		s.log.Debug().Str("client", conn.RemoteAddr().String()).Msg("client connected")
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads one job from a client and submits it.
func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	client := conn.RemoteAddr().String()

	data, err := io.ReadAll(io.LimitReader(conn, maxJobBytes))
	if err != nil {
		s.log.Error().Err(err).Str("client", client).Msg("read failed")
		return
	}
	if len(data) == 0 {
		s.log.Debug().Str("client", client).Msg("empty job ignored")
		return
	}

	done, err := s.queue.Submit(string(data))
	if err != nil {
		s.log.Error().Err(err).Str("client", client).Msg("submit rejected")
		return
	}

	if err := <-done; err != nil {
		s.log.Error().Err(err).Str("client", client).Msg("job failed")
		return
	}
	s.log.Info().Str("client", client).Int("bytes", len(data)).Msg("job printed")
}

// Stop stops the server and waits for in-flight connections to finish.
func (s *TCPServer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()
	s.log.Info().Msg("raw port stopped")
	return nil
}

// IsRunning returns whether the server is accepting connections.
func (s *TCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the listen address.
func (s *TCPServer) Address() string {
	return s.address
}
