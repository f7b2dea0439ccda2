// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package agentcontroller_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/juju/errors"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/greenbone/gvmd/internal/agentcontroller"
)

type transportSuite struct {
	jujutesting.IsolationSuite

	certs *testCerts
}

var _ = gc.Suite(&transportSuite{})

func (s *transportSuite) SetUpSuite(c *gc.C) {
	s.IsolationSuite.SetUpSuite(c)
	s.certs = generateCerts(c)
}

func (s *transportSuite) TestSecureConnectionTrustsConfiguredCA(c *gc.C) {
	server := s.newTLSServer(c, false)
	defer server.Close()

	conn := serverConnection(c, server)
	conn.CAPub = s.certs.caPEM

	agents, err := s.newSecureClient(c, conn).ListAgents(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(agents, gc.HasLen, 1)
}

func (s *transportSuite) TestSecureConnectionRejectsUnknownCA(c *gc.C) {
	// The server presents a certificate our CA did not sign.
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	conn := serverConnection(c, server)
	conn.CAPub = s.certs.caPEM

	_, err := s.newSecureClient(c, conn).ListAgents(context.Background())
	c.Assert(err, gc.ErrorMatches, `.*certificate signed by unknown authority.*`)
}

func (s *transportSuite) TestMutualTLS(c *gc.C) {
	server := s.newTLSServer(c, true)
	defer server.Close()

	conn := serverConnection(c, server)
	conn.CAPub = s.certs.caPEM
	conn.KeyPub = s.certs.clientCertPEM
	conn.KeyPriv = s.certs.clientKeyPEM

	agents, err := s.newSecureClient(c, conn).ListAgents(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(agents, gc.HasLen, 1)
}

func (s *transportSuite) TestMutualTLSRequiresClientPair(c *gc.C) {
	server := s.newTLSServer(c, true)
	defer server.Close()

	conn := serverConnection(c, server)
	conn.CAPub = s.certs.caPEM

	_, err := s.newSecureClient(c, conn).ListAgents(context.Background())
	c.Assert(err, gc.ErrorMatches, `.*remote error: tls: .*`)
}

func (s *transportSuite) TestNewClientBadCACertificate(c *gc.C) {
	_, err := agentcontroller.NewClient(agentcontroller.ClientConfig{
		Connection: agentcontroller.Connection{
			Host:    "scanner.example.com",
			Port:    8443,
			CAPub:   "not a certificate",
			KeyPub:  s.certs.clientCertPEM,
			KeyPriv: s.certs.clientKeyPEM,
		},
		Logger: testLogger{c: c},
	})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Assert(err, gc.ErrorMatches, "scanner CA certificate not valid")
}

func (s *transportSuite) TestNewClientBadClientPair(c *gc.C) {
	_, err := agentcontroller.NewClient(agentcontroller.ClientConfig{
		Connection: agentcontroller.Connection{
			Host:    "scanner.example.com",
			Port:    8443,
			CAPub:   s.certs.caPEM,
			KeyPub:  "garbage",
			KeyPriv: "garbage",
		},
		Logger: testLogger{c: c},
	})
	c.Assert(err, gc.ErrorMatches, "loading scanner client key pair: .*")
}

// newTLSServer starts a server presenting the suite's CA-signed
// certificate, optionally demanding a client certificate signed by the
// same CA.
func (s *transportSuite) newTLSServer(c *gc.C, mutual bool) *httptest.Server {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"agentid": "agent-1", "hostname": "edge-1", "authorized": true, "min_interval": 300, "heartbeat": 1692614400}]`)
	}))
	tlsConfig := &tls.Config{Certificates: []tls.Certificate{s.certs.server}}
	if mutual {
		pool := x509.NewCertPool()
		c.Assert(pool.AppendCertsFromPEM([]byte(s.certs.caPEM)), jc.IsTrue)
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	server.TLS = tlsConfig
	server.StartTLS()
	return server
}

func (s *transportSuite) newSecureClient(c *gc.C, conn agentcontroller.Connection) *agentcontroller.Client {
	client, err := agentcontroller.NewClient(agentcontroller.ClientConfig{
		Connection: conn,
		Logger:     testLogger{c: c},
	})
	c.Assert(err, jc.ErrorIsNil)
	return client
}

// testCerts is a throwaway CA with a server certificate for loopback
// and a client pair signed by the same CA.
type testCerts struct {
	caPEM         string
	server        tls.Certificate
	clientCertPEM string
	clientKeyPEM  string
}

func generateCerts(c *gc.C) *testCerts {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	c.Assert(err, jc.ErrorIsNil)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "gvmd test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	c.Assert(err, jc.ErrorIsNil)
	caCert, err := x509.ParseCertificate(caDER)
	c.Assert(err, jc.ErrorIsNil)

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	c.Assert(err, jc.ErrorIsNil)
	serverTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "agent controller"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
	}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTemplate, caCert, &serverKey.PublicKey, caKey)
	c.Assert(err, jc.ErrorIsNil)

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	c.Assert(err, jc.ErrorIsNil)
	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "gvmd"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	clientDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, &clientKey.PublicKey, caKey)
	c.Assert(err, jc.ErrorIsNil)

	clientKeyDER, err := x509.MarshalECPrivateKey(clientKey)
	c.Assert(err, jc.ErrorIsNil)

	return &testCerts{
		caPEM:         string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})),
		server:        tls.Certificate{Certificate: [][]byte{serverDER}, PrivateKey: serverKey},
		clientCertPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientDER})),
		clientKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: clientKeyDER})),
	}
}
