package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/scan"
)

// defaultLookupURL is the public MAC vendor API. The full MAC (colons
// stripped) goes in the path; the response carries a "company" field.
const defaultLookupURL = "https://api.maclookup.app/v2/macs/"

const fetchTimeout = 5 * time.Second

// OUIStore is the persistent prefix→manufacturer table. Implemented by
// the sqlite store; nil is acceptable and disables persistence.
type OUIStore interface {
	// Manufacturer returns the stored name for an OUI prefix. The
	// second return reports whether the prefix was present.
	Manufacturer(ctx context.Context, prefix string) (string, bool, error)
	PutManufacturer(ctx context.Context, prefix, manufacturer string) error
}

// ManufacturerSource answers manufacturer queries for a MAC address.
type ManufacturerSource interface {
	Manufacturer(mac string) string
}

// OUIClient resolves MAC prefixes to manufacturer names. Lookups go
// in-process cache → persistent store → remote API, with the last two
// performed on a background goroutine so a cache miss never stalls a
// scan cycle; the device picks up its manufacturer on a later cycle.
type OUIClient struct {
	store   OUIStore
	client  httputil.HTTPClient
	baseURL string

	mu      sync.Mutex
	cache   map[string]string
	pending map[string]bool
}

// NewOUIClient creates an OUIClient backed by the given store and HTTP
// client. Either may be nil: a nil store skips persistence, a nil
// client falls back to http.DefaultClient.
func NewOUIClient(store OUIStore, client httputil.HTTPClient) *OUIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &OUIClient{
		store:   store,
		client:  client,
		baseURL: defaultLookupURL,
		cache:   make(map[string]string),
		pending: make(map[string]bool),
	}
}

// Manufacturer returns the manufacturer for mac if already known.
// On a miss it returns "" immediately and starts a background fetch
// unless one is already in flight for the same prefix.
func (c *OUIClient) Manufacturer(mac string) string {
	prefix := scan.OUIPrefix(mac)
	if prefix == "" {
		return ""
	}

	c.mu.Lock()
	if name, ok := c.cache[prefix]; ok {
		c.mu.Unlock()
		return name
	}
	if c.pending[prefix] {
		c.mu.Unlock()
		return ""
	}
	c.pending[prefix] = true
	c.mu.Unlock()

	go c.fetch(prefix, mac)
	return ""
}

// Prime inserts a known prefix→manufacturer pair into the in-process
// cache, bypassing store and API. Used at startup to preload from the
// sqlite table and by the CSV importer path.
func (c *OUIClient) Prime(prefix, manufacturer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[prefix] = manufacturer
}

func (c *OUIClient) fetch(prefix, mac string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	if c.store != nil {
		name, ok, err := c.store.Manufacturer(ctx, prefix)
		if err != nil {
			monitoring.Logf("oui: store lookup for %s failed: %v", prefix, err)
		} else if ok {
			c.settle(prefix, name, false)
			return
		}
	}

	name, err := c.query(ctx, mac)
	if err != nil {
		monitoring.Logf("oui: remote lookup for %s failed: %v", prefix, err)
		// Transient failure: clear pending so a later cycle retries.
		c.mu.Lock()
		delete(c.pending, prefix)
		c.mu.Unlock()
		return
	}

	// An empty name from a successful response means the prefix is
	// unregistered; cache it to avoid re-querying every cycle.
	c.settle(prefix, name, name != "")
}

// settle records a resolved prefix in the cache and, when persist is
// set, the backing store.
func (c *OUIClient) settle(prefix, name string, persist bool) {
	c.mu.Lock()
	c.cache[prefix] = name
	delete(c.pending, prefix)
	c.mu.Unlock()

	if persist && c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := c.store.PutManufacturer(ctx, prefix, name); err != nil {
			monitoring.Logf("oui: persisting %s failed: %v", prefix, err)
		}
	}
}

func (c *OUIClient) query(ctx context.Context, mac string) (string, error) {
	url := c.baseURL + strings.ToUpper(strings.ReplaceAll(mac, ":", ""))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vendor API returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}

	var payload struct {
		Company string `json:"company"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decoding vendor response: %w", err)
	}
	return payload.Company, nil
}
