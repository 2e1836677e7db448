package config

import (
	"crypto/tls"
	"fmt"
)

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	t := c.Server.TLS

	switch t.Mode {
	case "disabled":
		return nil
	case "server":
		if err := validateCertAndKeyRequired(t); err != nil {
			return err
		}
		if err := validateNoDuplicateCertSources(t); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", t.Mode)
	}

	return validateTLSVersion(t)
}

func validateCertAndKeyRequired(t TLSConfig) error {
	if (t.CertFile == "" && t.CertContent == "") || (t.KeyFile == "" && t.KeyContent == "") {
		return fmt.Errorf("TLS certificate and key are required for server mode (provide either files or content)")
	}
	return nil
}

func validateNoDuplicateCertSources(t TLSConfig) error {
	if t.CertFile != "" && t.CertContent != "" {
		return fmt.Errorf("cannot specify both certFile and certContent - choose one")
	}
	if t.KeyFile != "" && t.KeyContent != "" {
		return fmt.Errorf("cannot specify both keyFile and keyContent - choose one")
	}
	return nil
}

func validateTLSVersion(t TLSConfig) error {
	switch t.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", t.MinVersion)
	}
}

// BuildTLSConfig loads the server certificate from files or Vault-provided content.
// It returns nil when TLS is disabled.
func (t TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	if t.Mode == "disabled" || t.Mode == "" {
		return nil, nil
	}

	var (
		cert tls.Certificate
		err  error
	)
	if t.CertContent != "" && t.KeyContent != "" {
		cert, err = tls.X509KeyPair([]byte(t.CertContent), []byte(t.KeyContent))
	} else {
		cert, err = tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if t.MinVersion == "1.3" {
		minVersion = tls.VersionTLS13
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}
