package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// RefData fetches region and price reference data.
// GET /refdata
func (c *Client) RefData(ctx context.Context) (*RefData, error) {
	resp, err := c.send(ctx, c.httpClient, http.MethodGet, "/refdata", nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("api: read refdata: %w", err)
	}
	return DecodeRefData(data)
}

// DecodeRefData decodes reference data, rejecting unknown fields so that a
// backend schema change fails loudly instead of being silently dropped.
func DecodeRefData(data []byte) (*RefData, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var rd RefData
	if err := dec.Decode(&rd); err != nil {
		return nil, fmt.Errorf("api: decode refdata: %w", err)
	}
	return &rd, nil
}

// BuildSignupTx asks the backend for an unsigned purchase transaction.
// POST /tx/signup
func (c *Client) BuildSignupTx(ctx context.Context, req SignupRequest) (*UnsignedTx, error) {
	var resp UnsignedTx
	if err := c.doRequest(ctx, http.MethodPost, "/tx/signup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildRenewTx asks the backend for an unsigned renewal transaction.
// POST /tx/renew
func (c *Client) BuildRenewTx(ctx context.Context, req RenewRequest) (*UnsignedTx, error) {
	var resp UnsignedTx
	if err := c.doRequest(ctx, http.MethodPost, "/tx/renew", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListClients lists the subscriptions owned by an address.
// POST /client/list
func (c *Client) ListClients(ctx context.Context, ownerAddress string) ([]ClientInfo, error) {
	var resp []ClientInfo
	if err := c.doRequest(ctx, http.MethodPost, "/client/list", ListClientsRequest{OwnerAddress: ownerAddress}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ClientAvailable reports whether client id is confirmed. It returns
// (nil, nil) while the backend does not know the client yet.
// POST /client/available
func (c *Client) ClientAvailable(ctx context.Context, id string) (*ClientInfo, error) {
	var resp *ClientInfo
	err := c.doRequest(ctx, http.MethodPost, "/client/available", AvailableRequest{ID: id}, &resp)
	if errors.Is(err, ErrNotFound) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchProfile fetches the OpenVPN profile location for a signed challenge.
// The backend answers with a redirect to the profile; the returned string is
// the redirect target, or the body text when a gateway already unwrapped the
// redirect into a plain response.
// POST /client/profile
func (c *Client) FetchProfile(ctx context.Context, req SignedChallenge) (string, error) {
	const path = "/client/profile"

	resp, err := c.send(ctx, c.noRedirect, http.MethodPost, path, req, "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case isRedirect(resp.StatusCode):
		if loc := resp.Header.Get("Location"); loc != "" {
			u, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return "", fmt.Errorf("api: parse redirect location: %w", err)
			}
			return u.String(), nil
		}
		c.logger.Debug("profile redirect has no visible location, following it")
		return c.followProfileRedirect(ctx, path, req)
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return readText(resp)
	default:
		return "", errorFromResponse(resp)
	}
}

// followProfileRedirect repeats the profile request with redirects followed
// and derives the profile location from the final request URL.
func (c *Client) followProfileRedirect(ctx context.Context, path string, req SignedChallenge) (string, error) {
	resp, err := c.send(ctx, c.httpClient, http.MethodPost, path, req, "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	original := c.baseURL + path
	if final := resp.Request.URL.String(); final != original {
		return final, nil
	}
	if !isRedirect(resp.StatusCode) && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return "", errorFromResponse(resp)
	}
	return "", &RedirectResolutionError{URL: original}
}

// RegisterWGDevice registers a WireGuard public key for a client.
// POST /client/wg-register
func (c *Client) RegisterWGDevice(ctx context.Context, req WGRegisterRequest) (*WGDevice, error) {
	var resp WGDevice
	if err := c.doRequest(ctx, http.MethodPost, "/client/wg-register", req, &resp); err != nil {
		return nil, err
	}
	if resp.Pubkey == "" {
		resp.Pubkey = req.WGPubkey
	}
	return &resp, nil
}

// FetchWGProfile fetches the WireGuard config template for a public key. The
// template carries a placeholder where the client's private key goes.
// POST /client/wg-profile
func (c *Client) FetchWGProfile(ctx context.Context, req WGProfileRequest) (string, error) {
	return c.doText(ctx, http.MethodPost, "/client/wg-profile", req)
}

// DeleteWGPeer removes a WireGuard device.
// DELETE /client/wg-peer
func (c *Client) DeleteWGPeer(ctx context.Context, req WGPeerRequest) error {
	return c.doRequest(ctx, http.MethodDelete, "/client/wg-peer", req, nil)
}

// ListWGDevices lists the WireGuard devices of a client.
// POST /client/wg-devices
func (c *Client) ListWGDevices(ctx context.Context, req SignedChallenge) ([]WGDevice, error) {
	var resp []WGDevice
	if err := c.doRequest(ctx, http.MethodPost, "/client/wg-devices", req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
