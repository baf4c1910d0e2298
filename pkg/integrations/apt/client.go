package apt

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/stackbuild/pkg/integrations"
)

// DefaultComponent is the archive component searched when none is given.
const DefaultComponent = "main"

// Client answers whether a binary package is published in a Debian
// repository. The Packages index of each release and architecture is
// downloaded and parsed once, then kept in memory.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL   string
	component string

	group   singleflight.Group
	mu      sync.RWMutex
	indexes map[string]map[string]string // release/arch -> package -> version
}

// NewClient creates a client for the repository rooted at baseURL
// (the directory containing "dists/"). An empty component means "main".
func NewClient(baseURL, component string) *Client {
	if component == "" {
		component = DefaultComponent
	}
	return &Client{
		Client:    integrations.NewClient(nil, "apt", 0, nil),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		component: component,
		indexes:   make(map[string]map[string]string),
	}
}

// Exists reports whether the release publishes a binary package with the
// given name for arch. A release without a Packages index publishes nothing.
func (c *Client) Exists(ctx context.Context, name, release, arch string) (bool, error) {
	idx, err := c.Index(ctx, release, arch)
	if err != nil {
		return false, err
	}
	_, ok := idx[name]
	return ok, nil
}

// Version returns the published version of a package, if any.
func (c *Client) Version(ctx context.Context, name, release, arch string) (string, bool, error) {
	idx, err := c.Index(ctx, release, arch)
	if err != nil {
		return "", false, err
	}
	v, ok := idx[name]
	return v, ok, nil
}

// Index returns the package -> version map of a release and architecture.
// The returned map must not be modified.
func (c *Client) Index(ctx context.Context, release, arch string) (map[string]string, error) {
	key := release + "/" + arch

	c.mu.RLock()
	idx, ok := c.indexes[key]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		idx, err := c.fetch(ctx, release, arch)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.indexes[key] = idx
		c.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// fetch downloads the plain Packages file, falling back to Packages.gz.
func (c *Client) fetch(ctx context.Context, release, arch string) (map[string]string, error) {
	base := fmt.Sprintf("%s/dists/%s/%s/binary-%s/Packages", c.baseURL, release, c.component, arch)

	body, err := c.Open(ctx, base, nil)
	if errors.Is(err, integrations.ErrNotFound) {
		return c.fetchGzip(ctx, base+".gz")
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", base, err)
	}
	defer body.Close()
	return ParsePackages(body)
}

func (c *Client) fetchGzip(ctx context.Context, url string) (map[string]string, error) {
	body, err := c.Open(ctx, url, nil)
	if errors.Is(err, integrations.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer body.Close()

	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", url, err)
	}
	defer zr.Close()
	return ParsePackages(zr)
}

// ParsePackages parses a Debian Packages index into a package -> version
// map. Only the Package and Version fields are read. When a package appears
// several times the last stanza wins.
func ParsePackages(r io.Reader) (map[string]string, error) {
	idx := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var name, version string
	flush := func() {
		if name != "" {
			idx[name] = version
		}
		name, version = "", ""
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			continue // continuation line
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch field {
		case "Package":
			name = strings.TrimSpace(value)
		case "Version":
			version = strings.TrimSpace(value)
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse Packages index: %w", err)
	}
	return idx, nil
}
