package server

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"cvinsight/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// CertReloader serves the current server certificate and swaps it when the
// certificate or key file changes.
type CertReloader struct {
	certFile string
	keyFile  string

	cert atomic.Pointer[tls.Certificate]

	debounceDelay time.Duration
	fsWatcher     *fsnotify.Watcher
	timer         *time.Timer
	mu            sync.Mutex
	done          chan struct{}
	stopOnce      sync.Once
	logger        *errors.Logger
}

// NewCertReloader creates a reloader; call Start to begin watching.
func NewCertReloader(certFile, keyFile string, debounceDelay time.Duration, logger *errors.Logger) *CertReloader {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	return &CertReloader{
		certFile:      certFile,
		keyFile:       keyFile,
		debounceDelay: debounceDelay,
		done:          make(chan struct{}),
		logger:        logger,
	}
}

func (cr *CertReloader) set(cert *tls.Certificate) {
	cr.cert.Store(cert)
}

// GetCertificate implements tls.Config.GetCertificate.
func (cr *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := cr.cert.Load()
	if cert == nil {
		return nil, fmt.Errorf("no server certificate loaded")
	}
	return cert, nil
}

// Reload reads the key pair from disk. The previous certificate stays in
// service when the new pair is invalid.
func (cr *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(cr.certFile, cr.keyFile)
	if err != nil {
		return fmt.Errorf("failed to reload certificate: %w", err)
	}
	cr.cert.Store(&cert)
	return nil
}

// Start watches the directories holding the certificate files. Directories
// are watched rather than files so atomic renames are seen.
func (cr *CertReloader) Start() error {
	if cr.cert.Load() == nil {
		if err := cr.Reload(); err != nil {
			return err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, dir := range uniqueDirs(cr.certFile, cr.keyFile) {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	cr.fsWatcher = w

	go cr.watchLoop()
	cr.logger.Info("Certificate file watcher started", "cert_file", cr.certFile, "key_file", cr.keyFile)
	return nil
}

func (cr *CertReloader) watchLoop() {
	cert, _ := filepath.Abs(cr.certFile)
	key, _ := filepath.Abs(cr.keyFile)

	for {
		select {
		case <-cr.done:
			return
		case event, ok := <-cr.fsWatcher.Events:
			if !ok {
				return
			}
			name, _ := filepath.Abs(event.Name)
			if name != cert && name != key {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cr.scheduleReload()
			}
		case err, ok := <-cr.fsWatcher.Errors:
			if !ok {
				return
			}
			cr.logger.Warn("Certificate watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of writes to the cert and key
func (cr *CertReloader) scheduleReload() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.timer != nil {
		cr.timer.Reset(cr.debounceDelay)
		return
	}
	cr.timer = time.AfterFunc(cr.debounceDelay, func() {
		if err := cr.Reload(); err != nil {
			cr.logger.LogError(err, "Certificate reload failed, keeping previous certificate")
			return
		}
		cr.logger.Info("Server certificate reloaded", "cert_file", cr.certFile)
	})
}

// Stop ends watching. Safe to call more than once.
func (cr *CertReloader) Stop() {
	cr.stopOnce.Do(func() {
		close(cr.done)
		cr.mu.Lock()
		if cr.timer != nil {
			cr.timer.Stop()
		}
		cr.mu.Unlock()
		if cr.fsWatcher != nil {
			_ = cr.fsWatcher.Close()
		}
	})
}

func uniqueDirs(paths ...string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, p := range paths {
		dir := filepath.Dir(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
