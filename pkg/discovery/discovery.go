package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// mDNS parameters of the hub's advertisement.
const (
	// ServiceType is the mDNS service hubs register under.
	ServiceType = "_home-assistant._tcp"

	// Domain is the mDNS domain to browse.
	Domain = "local."

	// DefaultFindTimeout bounds Find when the caller's context has no
	// deadline of its own.
	DefaultFindTimeout = 10 * time.Second
)

// ErrNoHubFound is returned by Find when browsing ends without a hit.
var ErrNoHubFound = errors.New("no hub found on the local network")

// HubService describes one discovered hub.
type HubService struct {
	// InstanceName is the mDNS instance name, typically the location
	// name chosen during hub setup.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port is the advertised API port.
	Port uint16

	// Addresses are the IPv4 and IPv6 addresses seen for this instance,
	// merged across interfaces.
	Addresses []string

	// BaseURL is the hub's advertised base URL, usable directly as a
	// monitor endpoint.
	BaseURL string

	// Version is the hub's software version.
	Version string

	// LocationName is the human-readable installation name.
	LocationName string

	// UUID is the hub's stable installation id.
	UUID string
}

// Config configures browsing.
type Config struct {
	// Interface restricts browsing to one network interface by name.
	// Empty browses all interfaces.
	Interface string
}

// Browser browses the local network for hubs.
type Browser struct {
	cfg Config
}

// NewBrowser creates a browser with cfg.
func NewBrowser(cfg Config) *Browser {
	return &Browser{cfg: cfg}
}

// Browse streams hubs as they are discovered until ctx is done. A hub
// seen on several interfaces is emitted once with merged addresses.
// The returned channel is closed when browsing ends.
func (b *Browser) Browse(ctx context.Context) (<-chan *HubService, error) {
	out := make(chan *HubService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]*HubService)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				hub := entryToHub(entry)
				if hub == nil {
					continue
				}
				if existing, found := seen[hub.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, hub.Addresses)
					continue
				}
				seen[hub.InstanceName] = hub
				select {
				case out <- hub:
				case <-ctx.Done():
					return
				}
			case <-removed:
				// Hubs rarely move; keep whatever we already emitted.
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...)
	}()

	return out, nil
}

// Find returns the first hub discovered, or ErrNoHubFound when the
// context ends without a hit. A context without deadline gets
// DefaultFindTimeout applied.
func (b *Browser) Find(ctx context.Context) (*HubService, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFindTimeout)
		defer cancel()
	}

	hubs, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case hub, ok := <-hubs:
		if !ok {
			return nil, ErrNoHubFound
		}
		return hub, nil
	case <-ctx.Done():
		return nil, ErrNoHubFound
	}
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(b.cfg.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToHub converts a raw service entry. Entries without a usable
// base URL are synthesized from host and port.
func entryToHub(entry *zeroconf.ServiceEntry) *HubService {
	if entry == nil {
		return nil
	}

	txt := parseTXT(entry.Text)

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	hub := &HubService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		BaseURL:      txt["base_url"],
		Version:      txt["version"],
		LocationName: txt["location_name"],
		UUID:         txt["uuid"],
	}
	if hub.BaseURL == "" {
		hub.BaseURL = txt["internal_url"]
	}
	if hub.BaseURL == "" && hub.Host != "" {
		hub.BaseURL = fmt.Sprintf("http://%s:%d", strings.TrimSuffix(hub.Host, "."), hub.Port)
	}
	return hub
}

// parseTXT splits key=value TXT records; a bare key maps to "".
func parseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, rec := range records {
		if rec == "" {
			continue
		}
		key, value, _ := strings.Cut(rec, "=")
		out[key] = value
	}
	return out
}

func mergeAddresses(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range extra {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}
