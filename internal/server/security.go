// Package server provides the listeners the session bridge is served on.
package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/dtroode/chronos/internal/model"
)

// NewSecurityLayer selects the listener factory for the bridge.
// It returns a TLS listener when enableTLS is set and a plain one otherwise.
//
// Parameters:
//   - enableTLS: Whether the bridge is served over TLS
//   - certFileName: Path to the TLS certificate file, used only with TLS
//   - privateKeyFileName: Path to the private key file, used only with TLS
//
// Returns the model.SecurityLayer the server listens through.
func NewSecurityLayer(enableTLS bool, certFileName, privateKeyFileName string) model.SecurityLayer {
	if enableTLS {
		return NewTLSListener(certFileName, privateKeyFileName)
	}
	return NewPlainListener()
}

// TLSListener represents a TLS-enabled network listener.
// It loads its certificate from disk on every Listen call.
type TLSListener struct {
	certFileName       string
	privateKeyFileName string
}

// NewTLSListener creates a new TLSListener instance.
// It initializes a TLS listener with the specified certificate and private key files.
//
// Parameters:
//   - certFileName: Path to the TLS certificate file
//   - privateKeyFileName: Path to the private key file
//
// Returns a pointer to the newly created TLSListener instance.
func NewTLSListener(certFileName, privateKeyFileName string) *TLSListener {
	return &TLSListener{
		certFileName:       certFileName,
		privateKeyFileName: privateKeyFileName,
	}
}

// Listen creates a TLS-enabled network listener.
// It loads the key pair and refuses protocol versions below TLS 1.2.
//
// Parameters:
//   - protocol: The network protocol (typically "tcp")
//   - addr: The address to listen on
//
// Returns a TLS-enabled network listener or an error if setup fails.
func (l *TLSListener) Listen(protocol, addr string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(l.certFileName, l.privateKeyFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return tls.Listen(protocol, addr, tlsConfig)
}

// PlainListener represents a plain (non-TLS) network listener.
type PlainListener struct{}

// NewPlainListener creates a new PlainListener instance.
//
// Returns a pointer to the newly created PlainListener instance.
func NewPlainListener() *PlainListener {
	return &PlainListener{}
}

// Listen creates an unencrypted listener on addr.
func (l *PlainListener) Listen(protocol, addr string) (net.Listener, error) {
	return net.Listen(protocol, addr)
}
