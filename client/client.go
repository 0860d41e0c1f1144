// Package client is the storefront SDK used by front ends and tools. Every call
// returns an envelope.Result so callers never handle transport errors directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"flipzone/apperr"
	"flipzone/envelope"
	"flipzone/models"
)

const notLoggedIn = "User not logged in"

// Client talks to the storefront API
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	logger  *log.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client. A nil session starts logged out.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		session: session,
		logger:  log.WithField("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

// Auth is the payload of register and login
type Auth struct {
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

type quantity struct {
	Quantity int `json:"quantity"`
}

type total struct {
	Total float64 `json:"total"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) envelope.Result[Auth] {
	res := call[Auth](ctx, c, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, false)
	if !res.Failed() {
		c.session.SetTokens(res.Response.AccessToken, res.Response.RefreshToken)
	}
	return res
}

func (c *Client) Login(ctx context.Context, email, password string) envelope.Result[Auth] {
	res := call[Auth](ctx, c, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, false)
	if !res.Failed() {
		c.session.SetTokens(res.Response.AccessToken, res.Response.RefreshToken)
	}
	return res
}

// Logout clears the session even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) envelope.Result[envelope.Message] {
	res := call[envelope.Message](ctx, c, http.MethodPost, "/api/auth/logout", nil, false)
	c.session.Clear()
	return res
}

// Refresh exchanges the session's refresh token for a new access token
func (c *Client) Refresh(ctx context.Context) envelope.Result[Auth] {
	refresh := c.session.RefreshToken()
	if refresh == "" {
		return envelope.Fail[Auth](notLoggedIn)
	}
	res := call[Auth](ctx, c, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": refresh}, false)
	if !res.Failed() {
		c.session.SetTokens(res.Response.AccessToken, "")
	}
	return res
}

// Products lists the catalog, dropping entries that fail validation.
func (c *Client) Products(ctx context.Context) envelope.Result[[]models.Product] {
	res := call[[]models.Product](ctx, c, http.MethodGet, "/api/products", nil, false)
	if res.Failed() {
		return res
	}
	return envelope.Ok(validProducts(res.Response))
}

// Categories returns products grouped by category
func (c *Client) Categories(ctx context.Context) envelope.Result[[]models.Category] {
	res := call[[]models.Category](ctx, c, http.MethodGet, "/api/products/categories", nil, false)
	if res.Failed() {
		return res
	}
	for i := range res.Response {
		res.Response[i].Products = validProducts(res.Response[i].Products)
	}
	return res
}

func (c *Client) Product(ctx context.Context, productID string) envelope.Result[models.Product] {
	res := call[models.Product](ctx, c, http.MethodGet, "/api/products/"+url.PathEscape(productID), nil, false)
	if res.Failed() {
		return res
	}
	if err := res.Response.Validate(); err != nil {
		c.logger.WithError(err).WithField("product_id", productID).Warn("server returned an invalid product")
		return envelope.Fail[models.Product](envelope.UnknownError)
	}
	return res
}

// Cart returns the shopper's cart lines
func (c *Client) Cart(ctx context.Context) envelope.Result[[]models.CartLine] {
	if !c.session.LoggedIn() {
		return envelope.Fail[[]models.CartLine](notLoggedIn)
	}
	return call[[]models.CartLine](ctx, c, http.MethodGet, "/cart", nil, true)
}

// AddToCart returns the message to show the shopper.
func (c *Client) AddToCart(ctx context.Context, productID string) envelope.Result[string] {
	if !c.session.LoggedIn() {
		return envelope.Fail[string](notLoggedIn)
	}
	res := call[envelope.Message](ctx, c, http.MethodPost, "/cart/add-to-cart", map[string]string{"product_id": productID}, true)
	return c.mutation(res)
}

// RemoveFromCart returns the message to show the shopper.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) envelope.Result[string] {
	if !c.session.LoggedIn() {
		return envelope.Fail[string](notLoggedIn)
	}
	res := call[envelope.Message](ctx, c, http.MethodDelete, "/cart/"+url.PathEscape(productID), nil, true)
	return c.mutation(res)
}

// ProductCount is 0 for a logged out shopper or an empty product id.
func (c *Client) ProductCount(ctx context.Context, productID string) envelope.Result[int] {
	if productID == "" || !c.session.LoggedIn() {
		return envelope.Ok(0)
	}
	res := call[quantity](ctx, c, http.MethodGet, "/cart/count/"+url.PathEscape(productID), nil, true)
	if res.Failed() {
		return envelope.Fail[int](res.Error)
	}
	return envelope.Ok(res.Response.Quantity)
}

// CountDistinctProducts is 0 for a logged out shopper.
func (c *Client) CountDistinctProducts(ctx context.Context) envelope.Result[int] {
	return c.summaryCount(ctx, func(s models.CartSummary) int { return s.DistinctProducts })
}

// CountTotalProducts is 0 for a logged out shopper.
func (c *Client) CountTotalProducts(ctx context.Context) envelope.Result[int] {
	return c.summaryCount(ctx, func(s models.CartSummary) int { return s.TotalQuantity })
}

// TotalPrice fails for a logged out shopper.
func (c *Client) TotalPrice(ctx context.Context) envelope.Result[float64] {
	if !c.session.LoggedIn() {
		return envelope.Fail[float64](notLoggedIn)
	}
	res := call[total](ctx, c, http.MethodGet, "/cart/total", nil, true)
	if res.Failed() {
		return envelope.Fail[float64](res.Error)
	}
	return envelope.Ok(res.Response.Total)
}

func (c *Client) summaryCount(ctx context.Context, pick func(models.CartSummary) int) envelope.Result[int] {
	if !c.session.LoggedIn() {
		return envelope.Ok(0)
	}
	res := call[models.CartSummary](ctx, c, http.MethodGet, "/cart/summary", nil, true)
	if res.Failed() {
		return envelope.Fail[int](res.Error)
	}
	return envelope.Ok(pick(res.Response))
}

func (c *Client) mutation(res envelope.Result[envelope.Message]) envelope.Result[string] {
	if res.Failed() {
		return envelope.Fail[string](res.Error)
	}
	c.session.notify(SessionEvent{Kind: EventCartChanged, LoggedIn: true})
	return envelope.Ok(res.Response.Message)
}

// call performs one request and decodes the envelope into T. Transport failures and
// malformed bodies become the generic unknown error.
func call[T any](ctx context.Context, c *Client, method, path string, body interface{}, auth bool) envelope.Result[T] {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return unknown[T](c, method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return unknown[T](c, method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return unknown[T](c, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return unknown[T](c, method, path, err)
	}
	decoded, err := envelope.Decode(raw)
	if err != nil {
		return unknown[T](c, method, path, fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decoded.Error != "" {
		if envelope.KindFor(resp.StatusCode) == apperr.Unauthenticated && auth {
			c.session.Clear()
		}
		return envelope.Fail[T](decoded.Error)
	}

	var out T
	if err := json.Unmarshal(decoded.Data, &out); err != nil {
		return unknown[T](c, method, path, err)
	}
	return envelope.Ok(out)
}

func unknown[T any](c *Client, method, path string, err error) envelope.Result[T] {
	c.logger.WithError(err).WithFields(log.Fields{"method": method, "path": path}).Warn("request failed")
	return envelope.Fail[T](envelope.UnknownError)
}

func validProducts(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.Validate() == nil {
			out = append(out, p)
		}
	}
	return out
}
