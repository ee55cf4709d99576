// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-device-service/internal/discovery"
)

const maxConcurrentProbes = 16

// Scanner dials configured network hosts for raw printer ports
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for TCP scanner
type Config struct {
	Hosts       []string      `json:"hosts"`
	CommonPorts []int         `json:"common_ports"`
	ConnTimeout time.Duration `json:"connection_timeout"`
}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if len(config.CommonPorts) == 0 {
		config.CommonPorts = []int{9100}
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = 500 * time.Millisecond
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// ScannerType returns scanner type
func (s *Scanner) ScannerType() string {
	return "tcp"
}

// IsAvailable reports whether any host is configured
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Hosts) > 0
}

// Scan dials every host and port combination and reports the open ones
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		found []*discovery.DiscoveredPort
		sem   = make(chan struct{}, maxConcurrentProbes)
	)

	for _, host := range s.config.Hosts {
		for _, port := range s.config.CommonPorts {
			address := net.JoinHostPort(host, strconv.Itoa(port))

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return nil, ctx.Err()
			}

			wg.Add(1)
			go func(host string, port int) {
				defer wg.Done()
				defer func() { <-sem }()

				if !s.reachable(ctx, address) {
					return
				}
				mu.Lock()
				found = append(found, &discovery.DiscoveredPort{
					Port:        fmt.Sprintf("tcp://%s", address),
					Transport:   "tcp",
					Description: fmt.Sprintf("open port %d on %s", port, host),
				})
				mu.Unlock()
			}(host, port)
		}
	}
	wg.Wait()

	sort.Slice(found, func(i, j int) bool { return found[i].Port < found[j].Port })
	return found, nil
}

func (s *Scanner) reachable(ctx context.Context, address string) bool {
	dialer := net.Dialer{Timeout: s.config.ConnTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		s.logger.Debug("Port closed", zap.String("address", address), zap.Error(err))
		return false
	}
	conn.Close()
	return true
}
