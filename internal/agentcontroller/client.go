// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package agentcontroller talks to the agent controller service a
// scanner exposes. Sensors deployed on hosts report to that controller,
// and the daemon mirrors its view of them: listing the agents it
// manages, pushing authorization and scheduling changes, and removing
// agents that were deleted locally.
package agentcontroller

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/juju/errors"
	"github.com/kr/pretty"
)

// Logger describes the logging methods used by this package.
type Logger interface {
	IsTraceEnabled() bool
	Errorf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Connection locates an agent controller and carries the TLS material
// needed to reach it, as resolved from the owning scanner.
type Connection struct {
	// Host and Port locate the controller's API endpoint.
	Host string
	Port int

	// CAPub is the PEM certificate the controller's certificate must
	// chain to. Empty means the controller listens in the clear.
	CAPub string

	// KeyPub and KeyPriv are the PEM client pair presented when the
	// controller requires mutual TLS.
	KeyPub  string
	KeyPriv string
}

// Validate ensures the connection is usable.
func (c Connection) Validate() error {
	if c.Host == "" {
		return errors.NotValidf("missing Host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NotValidf("port %d", c.Port)
	}
	if c.KeyPub != "" && c.KeyPriv == "" {
		return errors.NotValidf("client certificate without private key")
	}
	if c.KeyPriv != "" && c.KeyPub == "" {
		return errors.NotValidf("client private key without certificate")
	}
	return nil
}

// secure reports whether the connection carries any TLS material.
func (c Connection) secure() bool {
	return c.CAPub != "" || c.KeyPub != ""
}

// Agent is the controller's wire representation of one agent.
type Agent struct {
	// ID is the identifier the controller assigned to the agent.
	ID string `json:"agentid"`

	// Hostname names the host the agent runs on.
	Hostname string `json:"hostname"`

	// Authorized reports whether the controller lets the agent take
	// part in scans.
	Authorized bool `json:"authorized"`

	// MinInterval is the shortest permitted time between two contacts
	// from the agent, in seconds.
	MinInterval int `json:"min_interval"`

	// Heartbeat is the Unix time the agent last reported in.
	Heartbeat int64 `json:"heartbeat"`
}

// ClientConfig holds the dependencies of a controller client.
type ClientConfig struct {
	Connection Connection
	Logger     Logger
}

// Validate ensures that the config values are valid.
func (c ClientConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return errors.Trace(err)
	}
	if c.Logger == nil {
		return errors.NotValidf("missing logger")
	}
	return nil
}

// Client is an agent controller client for one scanner.
type Client struct {
	client RESTClient
	base   *url.URL
	logger Logger
}

// NewClient creates a client for the configured controller.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	base, err := controllerURL(cfg.Connection)
	if err != nil {
		return nil, errors.Trace(err)
	}

	transport, err := DefaultHTTPTransport(cfg.Connection, cfg.Logger)
	if err != nil {
		return nil, errors.Trace(err)
	}

	return &Client{
		client: NewHTTPRESTClient(NewAPIRequester(transport, cfg.Logger)),
		base:   base,
		logger: cfg.Logger,
	}, nil
}

// controllerURL returns the base URL of the controller's admin API. Any
// TLS material upgrades the scheme.
func controllerURL(conn Connection) (*url.URL, error) {
	scheme := "http"
	if conn.secure() {
		scheme = "https"
	}
	raw := fmt.Sprintf("%s://%s/api/v1/admin", scheme, net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port)))
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing agent controller url %q", raw)
	}
	return base, nil
}

// ListAgents returns the agents the controller currently manages.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	c.logger.Tracef("ListAgents()")
	var result []Agent
	if _, err := c.client.Get(ctx, c.base.JoinPath("agents"), &result); err != nil {
		return nil, errors.Trace(err)
	}
	c.logger.Tracef("ListAgents() unmarshalled: %s", pretty.Sprint(result))
	return result, nil
}

// UpdateAgents pushes the given agents' settings to the controller.
func (c *Client) UpdateAgents(ctx context.Context, agents []Agent) error {
	if len(agents) == 0 {
		return nil
	}
	c.logger.Tracef("UpdateAgents(%s)", pretty.Sprint(agents))
	if _, err := c.client.Patch(ctx, c.base.JoinPath("agents"), agents, nil); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// deleteAgentsRequest is the body of a bulk delete.
type deleteAgentsRequest struct {
	Agents []string `json:"agents"`
}

// DeleteAgents removes the identified agents from the controller.
func (c *Client) DeleteAgents(ctx context.Context, agentIDs ...string) error {
	if len(agentIDs) == 0 {
		return nil
	}
	c.logger.Tracef("DeleteAgents(%s)", pretty.Sprint(agentIDs))
	body := deleteAgentsRequest{Agents: agentIDs}
	if _, err := c.client.Delete(ctx, c.base.JoinPath("agents"), body, nil); err != nil {
		return errors.Trace(err)
	}
	return nil
}
