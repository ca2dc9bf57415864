// Package monitoring serves the live status of a bench run over HTTP, so
// long regressions can be watched from outside the process.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
)

// A ChannelStatus is the live state of one scoreboard channel.
type ChannelStatus struct {
	Name      string `json:"name"`
	Matched   int    `json:"matched"`
	Reference int    `json:"reference"`
	Actual    int    `json:"actual"`
}

// A Snapshot is the state of a run at one instant.
type Snapshot struct {
	Bench    string          `json:"bench"`
	Cycle    uint64          `json:"cycle"`
	Failed   bool            `json:"failed"`
	Channels []ChannelStatus `json:"channels"`
}

// A Source produces status snapshots. The bench implements it.
type Source interface {
	Status() Snapshot
}

// A Server exposes a Source over HTTP.
type Server struct {
	source     Source
	portNumber int
}

// NewServer creates a server over the given source.
func NewServer(source Source) *Server {
	return &Server{source: source}
}

// WithPortNumber sets the port to listen on. Ports below 1000 are rejected
// and replaced by a random port.
func (s *Server) WithPortNumber(portNumber int) *Server {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the status server. "+
				"Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	s.portNumber = portNumber

	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.status)
	r.HandleFunc("/api/channel/{name}", s.channel)
	return r
}

// StartServer starts listening in the background and returns the bound port.
func (s *Server) StartServer() (int, error) {
	addr := ":0"
	if s.portNumber > 0 {
		addr = ":" + strconv.Itoa(s.portNumber)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("monitoring: listen: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Run status served at http://localhost:%d/api/status\n", port)

	go func() {
		_ = http.Serve(listener, s.Handler())
	}()

	return port, nil
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Status()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) channel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap := s.source.Status()

	for _, ch := range snap.Channels {
		if ch.Name != name {
			continue
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	http.Error(w, "unknown channel "+name, http.StatusNotFound)
}
