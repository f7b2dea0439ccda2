// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package agentcontroller

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/juju/errors"
	jujuhttp "github.com/juju/http/v2"
	"gopkg.in/httprequest.v1"
)

// MIME represents a MIME type for identifying requests and response bodies.
type MIME = string

const (
	// JSON represents the MIME type for JSON request and response types.
	JSON MIME = "application/json"
)

// Transport defines a type for making the actual request.
type Transport interface {
	// Do performs the *http.Request and returns a *http.Response or an
	// error.
	Do(*http.Request) (*http.Response, error)
}

// DefaultHTTPTransport creates a transport for the connection. Without a
// client pair the stock client carries the CA trust; presenting a pair
// needs a transport whose TLS configuration holds both the trust pool
// and the pair.
func DefaultHTTPTransport(conn Connection, logger Logger) (Transport, error) {
	if conn.KeyPub == "" {
		var opts []jujuhttp.Option
		if conn.CAPub != "" {
			opts = append(opts, jujuhttp.WithCACertificates(conn.CAPub))
		}
		opts = append(opts, jujuhttp.WithLogger(logger))
		return jujuhttp.NewClient(opts...), nil
	}

	tlsConfig, err := clientTLSConfig(conn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

// clientTLSConfig builds the TLS configuration from the connection's
// material: the pool the controller's certificate must chain to, and the
// client pair presented when the controller demands one.
func clientTLSConfig(conn Connection) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if conn.CAPub != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(conn.CAPub)) {
			return nil, errors.NotValidf("scanner CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	if conn.KeyPub != "" {
		cert, err := tls.X509KeyPair([]byte(conn.KeyPub), []byte(conn.KeyPriv))
		if err != nil {
			return nil, errors.Annotate(err, "loading scanner client key pair")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// APIRequester creates a wrapper around the transport to allow for better
// error handling.
type APIRequester struct {
	transport Transport
	logger    Logger
}

// NewAPIRequester creates a new http.Client for making requests to a
// controller.
func NewAPIRequester(transport Transport, logger Logger) *APIRequester {
	return &APIRequester{
		transport: transport,
		logger:    logger,
	}
}

// Do performs the *http.Request and returns a *http.Response or an error
// if the controller answered outside the 2xx range.
func (t *APIRequester) Do(req *http.Request) (*http.Response, error) {
	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpRequest(req, true); err == nil {
			t.logger.Tracef("%s request %s", req.Method, data)
		} else {
			t.logger.Tracef("%s request DumpRequest error %s", req.Method, err.Error())
		}
	}

	resp, err := t.transport.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpResponse(resp, true); err == nil {
			t.logger.Tracef("%s response %s", req.Method, data)
		} else {
			t.logger.Tracef("%s response DumpResponse error %s", req.Method, err.Error())
		}
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode <= http.StatusNoContent {
		return resp, nil
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if data, err := httputil.DumpResponse(resp, true); err == nil {
		t.logger.Errorf("agent controller response: %s", data)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, errors.NotFoundf("agent controller %q", req.URL.String())
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.Unauthorizedf("agent controller %q refused credentials", req.URL.String())
	default:
		return nil, errors.Errorf("agent controller %q: server error %d", req.URL.String(), resp.StatusCode)
	}
}

// RESTResponse abstracts away the underlying response from the
// implementation.
type RESTResponse struct {
	StatusCode int
}

// RESTClient defines a type for making requests to a controller.
type RESTClient interface {
	// Get performs GET requests to a given URL.
	Get(context.Context, *url.URL, interface{}) (RESTResponse, error)
	// Patch performs PATCH requests to a given URL.
	Patch(context.Context, *url.URL, interface{}, interface{}) (RESTResponse, error)
	// Delete performs DELETE requests to a given URL.
	Delete(context.Context, *url.URL, interface{}, interface{}) (RESTResponse, error)
}

// HTTPRESTClient represents a RESTClient that expects to interact with an
// HTTP transport.
type HTTPRESTClient struct {
	transport Transport
}

// NewHTTPRESTClient creates a new HTTPRESTClient.
func NewHTTPRESTClient(transport Transport) *HTTPRESTClient {
	return &HTTPRESTClient{
		transport: transport,
	}
}

// Get makes a GET request to the given URL and parses the response as
// JSON into result, which should be a pointer to the expected data, but
// may be nil if no result is desired.
func (c *HTTPRESTClient) Get(ctx context.Context, url *url.URL, result interface{}) (RESTResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url.String(), nil)
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}
	req.Header.Set("Accept", JSON)
	req.Header.Set("Content-Type", JSON)

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httprequest.UnmarshalJSONResponse(resp, result); err != nil {
		return RESTResponse{}, errors.Annotate(err, "agent controller client get")
	}
	return RESTResponse{StatusCode: resp.StatusCode}, nil
}

// Patch makes a PATCH request to the given URL with the body encoded as
// JSON, parsing any response the same way as Get.
func (c *HTTPRESTClient) Patch(ctx context.Context, url *url.URL, body, result interface{}) (RESTResponse, error) {
	return c.do(ctx, "PATCH", url, body, result)
}

// Delete makes a DELETE request to the given URL with the body encoded
// as JSON, parsing any response the same way as Get.
func (c *HTTPRESTClient) Delete(ctx context.Context, url *url.URL, body, result interface{}) (RESTResponse, error) {
	return c.do(ctx, "DELETE", url, body, result)
}

func (c *HTTPRESTClient) do(ctx context.Context, method string, url *url.URL, body, result interface{}) (RESTResponse, error) {
	buffer := &bytes.Buffer{}
	if err := json.NewEncoder(buffer).Encode(body); err != nil {
		return RESTResponse{}, errors.Trace(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.String(), buffer)
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}
	req.Header.Set("Accept", JSON)
	req.Header.Set("Content-Type", JSON)

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httprequest.UnmarshalJSONResponse(resp, result); err != nil {
		return RESTResponse{}, errors.Annotatef(err, "agent controller client %s", method)
	}
	return RESTResponse{StatusCode: resp.StatusCode}, nil
}
