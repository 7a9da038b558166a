// Package restapi is the terminal-side client for the order API. It
// implements the catalog resolution, order mutation, and change
// notification interfaces the terminal view model consumes, so a terminal
// can be pointed at any server instance with just a base URL and a token.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/order"
	"github.com/warung-pos/api/internal/terminal"
)

// APIError is a non-2xx response from the server, carrying the decoded
// error message when one was present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	wsURL   string
	token   string
	http    *http.Client
}

func New(baseURL, wsURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		wsURL:   wsURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Login authenticates and stores the token for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// orderDetail mirrors the server's order-plus-lines response shape.
type orderDetail struct {
	order.Order
	Lines []order.Line `json:"lines"`
}

// --- terminal.CatalogResolver ---

func (c *Client) ResolveMenuItem(ctx context.Context, id uuid.UUID) (catalog.MenuItem, []catalog.ResolvedBinding, error) {
	var resp struct {
		Item     catalog.MenuItem          `json:"item"`
		Bindings []catalog.ResolvedBinding `json:"bindings"`
	}
	err := c.do(ctx, http.MethodGet, "/catalog/menu-items/"+id.String()+"/config", nil, &resp)
	if err != nil {
		return catalog.MenuItem{}, nil, mapCatalogError(err)
	}
	return resp.Item, resp.Bindings, nil
}

func (c *Client) ResolveDeal(ctx context.Context, id uuid.UUID) (catalog.Deal, []catalog.ResolvedBinding, []catalog.ResolvedMember, error) {
	var resp struct {
		Deal     catalog.Deal              `json:"deal"`
		Bindings []catalog.ResolvedBinding `json:"bindings"`
		Members  []catalog.ResolvedMember  `json:"members"`
	}
	err := c.do(ctx, http.MethodGet, "/catalog/deals/"+id.String()+"/config", nil, &resp)
	if err != nil {
		return catalog.Deal{}, nil, nil, mapCatalogError(err)
	}
	return resp.Deal, resp.Bindings, resp.Members, nil
}

// mapCatalogError keeps the resolver's contract: a failed catalog read must
// never look like an empty-but-valid configuration.
func mapCatalogError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return catalog.ErrNotFound
		case http.StatusConflict:
			return fmt.Errorf("%s", apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", catalog.ErrCatalogUnavailable, err)
}

// --- terminal.OrderAPI ---

func (c *Client) CreateOrder(ctx context.Context, params terminal.CreateOrderParams) (order.Order, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodPost, "/orders", map[string]interface{}{
		"type":            params.Type,
		"delivery_charge": params.DeliveryCharge,
	}, &resp)
	if err != nil {
		return order.Order{}, err
	}
	return resp.Order, nil
}

func (c *Client) GetOrderWithLines(ctx context.Context, orderID uuid.UUID) (order.Order, []order.Line, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodGet, "/orders/"+orderID.String(), nil, &resp)
	if err != nil {
		return order.Order{}, nil, err
	}
	return resp.Order, resp.Lines, nil
}

func (c *Client) AddLine(ctx context.Context, orderID uuid.UUID, ln order.Line) (order.Line, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodPost, "/orders/"+orderID.String()+"/lines", ln, &resp)
	if err != nil {
		return order.Line{}, err
	}
	return findLine(resp.Lines, ln.ID)
}

func (c *Client) UpdateLineQuantity(ctx context.Context, orderID, lineID uuid.UUID, quantity int32) (order.Line, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodPatch, "/orders/"+orderID.String()+"/lines/"+lineID.String(),
		map[string]int32{"quantity": quantity}, &resp)
	if err != nil {
		return order.Line{}, err
	}
	return findLine(resp.Lines, lineID)
}

func (c *Client) RemoveLine(ctx context.Context, orderID, lineID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/orders/"+orderID.String()+"/lines/"+lineID.String(), nil, nil)
}

func (c *Client) ApplyDiscount(ctx context.Context, orderID uuid.UUID, params terminal.DiscountParams) (order.Order, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodPost, "/orders/"+orderID.String()+"/discount", map[string]interface{}{
		"type":      params.Type,
		"value":     params.Value,
		"reference": params.Reference,
	}, &resp)
	if err != nil {
		return order.Order{}, err
	}
	return resp.Order, nil
}

func (c *Client) RemoveDiscount(ctx context.Context, orderID uuid.UUID) (order.Order, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodDelete, "/orders/"+orderID.String()+"/discount", nil, &resp)
	if err != nil {
		return order.Order{}, err
	}
	return resp.Order, nil
}

func (c *Client) SetStatus(ctx context.Context, orderID uuid.UUID, status string) (order.Order, error) {
	var resp orderDetail
	err := c.do(ctx, http.MethodPatch, "/orders/"+orderID.String()+"/status",
		map[string]string{"status": status}, &resp)
	if err != nil {
		return order.Order{}, err
	}
	return resp.Order, nil
}

// --- terminal.Notifier ---

// SubscribeChanges opens the change-notification websocket and streams the
// resource names of incoming events. The channel closes when ctx is done or
// the connection drops; the caller decides whether to redial.
func (c *Client) SubscribeChanges(ctx context.Context, resources []string) (<-chan string, error) {
	url := c.wsURL + "?token=" + c.token + "&resources=" + strings.Join(resources, ",")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	events := make(chan string, 16)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("change feed closed: %v", err)
				}
				return
			}
			// The hub batches queued events newline-separated.
			for _, raw := range bytes.Split(message, []byte{'\n'}) {
				if len(raw) == 0 {
					continue
				}
				var event struct {
					Resource string `json:"resource"`
				}
				if err := json.Unmarshal(raw, &event); err != nil || event.Resource == "" {
					continue
				}
				select {
				case events <- event.Resource:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// --- plumbing ---

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func findLine(lines []order.Line, id uuid.UUID) (order.Line, error) {
	for _, ln := range lines {
		if ln.ID == id {
			return ln, nil
		}
	}
	return order.Line{}, fmt.Errorf("line %s missing from server response", id)
}

var (
	_ terminal.OrderAPI        = (*Client)(nil)
	_ terminal.CatalogResolver = (*Client)(nil)
	_ terminal.Notifier        = (*Client)(nil)
)
