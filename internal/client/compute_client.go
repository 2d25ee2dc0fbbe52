package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ComputeClient calls the cloud provider API (DigitalOcean-compatible) to
// manage droplets.
type ComputeClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewComputeClient creates a new compute client
func NewComputeClient(baseURL, token string) *ComputeClient {
	return &ComputeClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// CreateDropletRequest is the request to create a droplet
type CreateDropletRequest struct {
	Name   string   `json:"name"`
	Region string   `json:"region"`
	Size   string   `json:"size"`
	Image  string   `json:"image"`
	Tags   []string `json:"tags,omitempty"`
}

// Droplet contains the provider's view of a compute instance
type Droplet struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"` // new, active, off, archive
	Networks struct {
		V4 []struct {
			IPAddress string `json:"ip_address"`
			Type      string `json:"type"` // public, private
		} `json:"v4"`
	} `json:"networks"`
}

// PublicIP returns the droplet's public IPv4 address, empty until assigned
func (d *Droplet) PublicIP() string {
	for _, n := range d.Networks.V4 {
		if n.Type == "public" {
			return n.IPAddress
		}
	}
	return ""
}

type dropletEnvelope struct {
	Droplet Droplet `json:"droplet"`
}

// CreateDroplet creates a new droplet
func (c *ComputeClient) CreateDroplet(ctx context.Context, req *CreateDropletRequest) (*Droplet, error) {
	log.Printf("[ComputeClient] Creating droplet %s (region: %s, size: %s)", req.Name, req.Region, req.Size)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v2/droplets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("compute API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result dropletEnvelope
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, string(respBody))
	}

	log.Printf("[ComputeClient] Droplet created: %d (status: %s)", result.Droplet.ID, result.Droplet.Status)
	return &result.Droplet, nil
}

// GetDroplet gets droplet details by ID
func (c *ComputeClient) GetDroplet(ctx context.Context, dropletID string) (*Droplet, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v2/droplets/"+dropletID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("droplet not found: %s", dropletID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("compute API returned status %d", resp.StatusCode)
	}

	var result dropletEnvelope
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, string(respBody))
	}

	return &result.Droplet, nil
}

// PowerOff powers off a droplet
func (c *ComputeClient) PowerOff(ctx context.Context, dropletID string) error {
	return c.action(ctx, dropletID, "power_off")
}

// PowerOn powers on a droplet
func (c *ComputeClient) PowerOn(ctx context.Context, dropletID string) error {
	return c.action(ctx, dropletID, "power_on")
}

// Reboot reboots a droplet
func (c *ComputeClient) Reboot(ctx context.Context, dropletID string) error {
	return c.action(ctx, dropletID, "reboot")
}

func (c *ComputeClient) action(ctx context.Context, dropletID, actionType string) error {
	log.Printf("[ComputeClient] Droplet %s action: %s", dropletID, actionType)

	body, err := json.Marshal(map[string]string{"type": actionType})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/v2/droplets/"+dropletID+"/actions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("compute API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Destroy deletes a droplet permanently
func (c *ComputeClient) Destroy(ctx context.Context, dropletID string) error {
	log.Printf("[ComputeClient] Destroying droplet: %s", dropletID)

	httpReq, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/v2/droplets/"+dropletID, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("compute API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	log.Printf("[ComputeClient] Droplet destroyed: %s", dropletID)
	return nil
}

// WaitForDropletActive polls until the droplet is active with a public IP
func (c *ComputeClient) WaitForDropletActive(ctx context.Context, dropletID string, maxWait time.Duration) (*Droplet, error) {
	log.Printf("[ComputeClient] Waiting for droplet %s to be active (max %v)", dropletID, maxWait)

	deadline := time.Now().Add(maxWait)
	pollInterval := 5 * time.Second

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		droplet, err := c.GetDroplet(ctx, dropletID)
		if err != nil {
			log.Printf("[ComputeClient] Error getting droplet status: %v", err)
			time.Sleep(pollInterval)
			continue
		}

		if droplet.Status == "active" && droplet.PublicIP() != "" {
			return droplet, nil
		}

		time.Sleep(pollInterval)
	}

	return nil, fmt.Errorf("timeout waiting for droplet to be active")
}
