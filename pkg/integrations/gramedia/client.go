package gramedia

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/integrations"
)

// Defaults for the public catalog.
const (
	DefaultAPIURL   = "https://api-service.gramedia.com/api/v2/public"
	DefaultWebURL   = "https://www.gramedia.com"
	DefaultBuildID  = "ey4L3i4wZwf5ANxjLrGrb"
	DefaultPageSize = 20

	// RootCategory is the top-level category all book categories descend from.
	RootCategory = "buku"
)

// Options configures a [Client]. Zero values use the package defaults.
type Options struct {
	APIURL   string        // catalog API base
	WebURL   string        // storefront base, used for product descriptions
	BuildID  string        // storefront build id embedded in the data path
	PageSize int           // records per page for list endpoints
	HTTP     *http.Client  // nil uses integrations.NewHTTPClient
	Attempts int           // retry attempts per request
	Backoff  time.Duration // initial retry delay
}

// Client provides access to the catalog API.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	apiURL   string
	webURL   string
	buildID  string
	pageSize int
}

// NewClient creates a catalog client.
func NewClient(opts Options) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.WebURL == "" {
		opts.WebURL = DefaultWebURL
	}
	if opts.BuildID == "" {
		opts.BuildID = DefaultBuildID
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Client{
		Client:   integrations.NewClient(opts.HTTP, nil).WithRetry(opts.Attempts, opts.Backoff),
		apiURL:   opts.APIURL,
		webURL:   opts.WebURL,
		buildID:  opts.BuildID,
		pageSize: opts.PageSize,
	}
}

// PageSize returns the page size used for list endpoints.
func (c *Client) PageSize() int { return c.pageSize }

// CategoryTree fetches the nested category tree below parent.
func (c *Client) CategoryTree(ctx context.Context, parent string) ([]CategoryNode, error) {
	url := c.apiURL + "/subcategory?parent_category=" + integrations.URLEncode(parent)

	var resp struct {
		Data []CategoryNode `json:"data"`
	}
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("category tree %q: %w", parent, err)
	}
	if resp.Data == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidResponse, "category tree %q: response has no data", parent)
	}
	return resp.Data, nil
}

// Products fetches every product listed under a category, in page order.
func (c *Client) Products(ctx context.Context, category string) ([]Product, error) {
	products, err := FetchAll(ctx, func(ctx context.Context, page int) (*Envelope[Product], error) {
		url := fmt.Sprintf("%s/products?is_available_only=false&page=%d&size=%d&slug=%s",
			c.apiURL, page, c.pageSize, integrations.URLEncode(category))
		return getPage[Product](ctx, c, url)
	})
	if err != nil {
		return nil, fmt.Errorf("products %q: %w", category, err)
	}
	return products, nil
}

// Stores fetches every online (or offline) store, in page order.
func (c *Client) Stores(ctx context.Context, online bool) ([]Store, error) {
	stores, err := FetchAll(ctx, func(ctx context.Context, page int) (*Envelope[Store], error) {
		url := fmt.Sprintf("%s/stores?is_online=%s&page=%d&size=%d",
			c.apiURL, strconv.FormatBool(online), page, c.pageSize)
		return getPage[Store](ctx, c, url)
	})
	if err != nil {
		return nil, fmt.Errorf("stores (online=%t): %w", online, err)
	}
	return stores, nil
}

// Description fetches the long description of a product from the
// storefront's page data. A product page without a description is
// reported as an INVALID_RESPONSE error.
func (c *Client) Description(ctx context.Context, slug string) (string, error) {
	s := integrations.PathEscape(slug)
	url := fmt.Sprintf("%s/_next/data/%s/products/%s.json?productDetailSlug=%s",
		c.webURL, c.buildID, s, integrations.URLEncode(slug))

	var detail productDetail
	if err := c.Get(ctx, url, &detail); err != nil {
		return "", fmt.Errorf("description %q: %w", slug, err)
	}
	meta := detail.PageProps.ProductDetailMeta
	if meta == nil || meta.Description == nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidResponse, "description %q: missing pageProps.productDetailMeta.description", slug)
	}
	return *meta.Description, nil
}

func getPage[T any](ctx context.Context, c *Client, url string) (*Envelope[T], error) {
	var env Envelope[T]
	if err := c.Get(ctx, url, &env); err != nil {
		return nil, err
	}
	if env.Meta == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidResponse, "%s: list response has no meta", url)
	}
	return &env, nil
}
