package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pthm-cable/gridsoup/renderer"
)

// retrieveResponse is the body of GET {base}/retrieve.
type retrieveResponse struct {
	Data []*string `json:"data"`
}

// Server reads genomes from an HTTP endpoint into a ring buffer of
// 2*halfSize slots. Each slot is handed out once; when the cursor reaches
// an empty slot the buffer is refilled from that slot onward, up to
// halfSize items at a time.
type Server struct {
	client  *http.Client
	baseURL string
	simID   int

	buffer   []string
	halfSize int
	index    int
}

// NewServer creates a server provider and fills its buffer.
func NewServer(ctx context.Context, baseURL string, simID, halfSize int, timeout time.Duration) (*Server, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server provider: url is required")
	}
	if halfSize < 1 {
		halfSize = 1
	}
	s := &Server{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		simID:    simID,
		buffer:   make([]string, 2*halfSize),
		halfSize: halfSize,
	}
	if err := s.fill(ctx, 0, len(s.buffer)); err != nil {
		return nil, err
	}
	return s, nil
}

// RequestNewData advances the cursor and refills the buffer when the new
// slot is empty.
func (s *Server) RequestNewData(ctx context.Context) error {
	s.index = (s.index + 1) % len(s.buffer)
	if s.buffer[s.index] != "" {
		return nil
	}
	return s.fill(ctx, s.index, min(s.halfSize, len(s.buffer)-s.index))
}

// RawData hands out the current slot. A slot is only handed out once.
func (s *Server) RawData() (string, error) {
	data := s.take()
	if data == "" {
		return "", ErrNoData
	}
	return data, nil
}

// PreparedData hands out the current slot as a color.
func (s *Server) PreparedData() (renderer.RGB, error) {
	data := s.take()
	if data == "" {
		return renderer.RGB{}, ErrNoData
	}
	return tripleFromDigits(data)
}

func (s *Server) take() string {
	data := s.buffer[s.index]
	s.buffer[s.index] = ""
	return data
}

// fill requests num genomes and stores them from slot start.
func (s *Server) fill(ctx context.Context, start, num int) error {
	data, err := s.fetch(ctx, num)
	if err != nil {
		return err
	}
	for i := 0; i < num && i < len(data) && start+i < len(s.buffer); i++ {
		if data[i] == nil {
			break
		}
		s.buffer[start+i] = *data[i]
	}
	return nil
}

func (s *Server) fetch(ctx context.Context, num int) ([]*string, error) {
	query := url.Values{}
	query.Set("simId", strconv.Itoa(s.simID))
	query.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/retrieve?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building retrieve request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieving genomes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieving genomes: unexpected status %s", resp.Status)
	}

	var body retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding retrieve response: %w", err)
	}
	return body.Data, nil
}
