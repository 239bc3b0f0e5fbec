package certs

import (
	"crypto/tls"
	"fmt"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/internal/watch"
	"github.com/kingland/kingland-website/log"
	"sync"
)

// Store holds the server certificates and swaps them when their files change.
type Store struct {
	conf           *config.TlsConfig
	statusReporter status.Reporter
	log            log.Logger
	watcher        *watch.FileWatcher

	mu    sync.RWMutex
	pairs []*tls.Certificate
}

func NewStore(conf *config.TlsConfig, statusReporter status.Reporter, log log.Logger) (*Store, error) {
	certLog := log.WithPrefix("tls")
	pairs, err := loadPairs(conf.Certificates)
	if err != nil {
		statusReporter.ReportError(status.Tls, err.Error())
		return nil, err
	}
	s := &Store{
		conf:           conf,
		statusReporter: statusReporter,
		log:            certLog,
		pairs:          pairs,
	}
	statusReporter.ReportOk(status.Tls, fmt.Sprintf("%d certificate(s) loaded", len(pairs)))
	if conf.Watch {
		var paths []string
		for _, c := range conf.Certificates {
			paths = append(paths, c.Cert, c.Key)
		}
		s.watcher, err = watch.NewFileWatcher(paths, certLog)
		if err != nil {
			return nil, err
		}
		go s.reload()
	}
	return s, nil
}

// GetCertificate picks the first certificate that supports the client hello, or the first one when none does.
func (s *Store) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.pairs) == 0 {
		return nil, fmt.Errorf("no certificates available")
	}
	for _, pair := range s.pairs {
		if hello.SupportsCertificate(pair) == nil {
			return pair, nil
		}
	}
	return s.pairs[0], nil
}

func (s *Store) ServerTlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     s.conf.GetVersion(),
		GetCertificate: s.GetCertificate,
	}
}

func (s *Store) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Store) reload() {
	for {
		select {
		case <-s.watcher.Modified():
			pairs, err := loadPairs(s.conf.Certificates)
			if err != nil {
				s.log.Errorf("failed to reload certificates, keeping the previous ones: %s", err)
				s.statusReporter.ReportError(status.Tls, "reload failed: "+err.Error())
				continue
			}
			s.mu.Lock()
			s.pairs = pairs
			s.mu.Unlock()
			s.log.Reportf("certificates reloaded")
			s.statusReporter.ReportOk(status.Tls, "certificates reloaded")
		case <-s.watcher.Closed():
			return
		}
	}
}

func loadPairs(certs []config.CertConfig) ([]*tls.Certificate, error) {
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates configured")
	}
	pairs := make([]*tls.Certificate, 0, len(certs))
	for _, c := range certs {
		pair, err := tls.LoadX509KeyPair(c.Cert, c.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate and key files %s, %s: %w", c.Cert, c.Key, err)
		}
		pairs = append(pairs, &pair)
	}
	return pairs, nil
}
