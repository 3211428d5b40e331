package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/ipv4"
)

// SSDP defaults.
const (
	DefaultSearchTarget = "upnp:rootdevice"
	DefaultTimeout      = 5 * time.Second

	ssdpGroup       = "239.255.255.250:1900"
	multicastTTL    = 2
	maxDatagram     = 2048
	maxDescriptor   = 64 << 10
	descriptorLimit = 3 * time.Second
)

// Device is one discovered receiver.
type Device struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model,omitempty"`
	Location     string `json:"location"`
}

// Logger is the logging interface used by the scanner.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

// Options configures a Scanner.
type Options struct {
	// Timeout is the window for collecting replies. Default: 5 seconds.
	Timeout time.Duration

	// SearchTarget is the ST header. Default: upnp:rootdevice
	SearchTarget string

	// Interface selects the outgoing multicast interface; nil uses the
	// system default.
	Interface *net.Interface

	// Match filters described devices; nil keeps all of them.
	Match func(Device) bool

	// HTTPClient fetches descriptions. Default: a client with a short
	// timeout.
	HTTPClient *http.Client

	Logger Logger
}

// Scanner performs SSDP scans.
type Scanner struct {
	opts  Options
	group string
}

// NewScanner creates a scanner with defaults applied.
func NewScanner(opts Options) *Scanner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SearchTarget == "" {
		opts.SearchTarget = DefaultSearchTarget
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: descriptorLimit}
	}
	return &Scanner{opts: opts, group: ssdpGroup}
}

// MatchReceivers keeps devices from manufacturers that ship the telnet
// control protocol.
func MatchReceivers(d Device) bool {
	m := strings.ToLower(d.Manufacturer)
	return strings.Contains(m, "denon") || strings.Contains(m, "marantz")
}

// Scan sends one M-SEARCH and returns the matching devices sorted by
// address. Devices whose description cannot be fetched are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]Device, error) {
	locations, err := s.search(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(locations))
	for loc, addr := range locations {
		dev, err := FetchDescriptor(ctx, s.opts.HTTPClient, loc)
		if err != nil {
			s.debug("skipping device", "location", loc, "error", err)
			continue
		}
		if addr != "" {
			dev.Address = addr
		}
		if s.opts.Match != nil && !s.opts.Match(dev) {
			continue
		}
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })
	return devices, nil
}

// search collects LOCATION -> responder IP for the scan window.
func (s *Scanner) search(ctx context.Context) (map[string]string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening ssdp socket: %w", err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(multicastTTL); err != nil {
		s.debug("setting multicast ttl", "error", err)
	}
	if s.opts.Interface != nil {
		if err := pc.SetMulticastInterface(s.opts.Interface); err != nil {
			return nil, fmt.Errorf("selecting interface %s: %w", s.opts.Interface.Name, err)
		}
	}

	dst, err := net.ResolveUDPAddr("udp4", s.group)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", s.group, err)
	}
	if _, err := pc.WriteTo(searchRequest(s.opts.SearchTarget, s.opts.Timeout), nil, dst); err != nil {
		return nil, fmt.Errorf("sending m-search: %w", err)
	}

	deadline := time.Now().Add(s.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	found := make(map[string]string)
	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return found, nil
		}
		n, _, src, err := pc.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return found, nil
			}
			return nil, fmt.Errorf("reading ssdp replies: %w", err)
		}
		loc, err := parseResponse(buf[:n])
		if err != nil {
			s.debug("ignoring ssdp datagram", "from", src.String(), "error", err)
			continue
		}
		if _, seen := found[loc]; !seen {
			found[loc] = hostOf(src)
		}
	}
}

func searchRequest(target string, timeout time.Duration) []byte {
	mx := int(timeout / time.Second)
	if mx < 1 {
		mx = 1
	}
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + ssdpGroup + "\r\n")
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	fmt.Fprintf(&b, "MX: %d\r\n", mx)
	b.WriteString("ST: " + target + "\r\n\r\n")
	return []byte(b.String())
}

// parseResponse extracts LOCATION from an SSDP reply or NOTIFY.
func parseResponse(data []byte) (string, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var header http.Header
	if bytes.HasPrefix(data, []byte("HTTP/")) {
		resp, err := http.ReadResponse(r, nil)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		resp.Body.Close()
		header = resp.Header
	} else {
		req, err := http.ReadRequest(r)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		header = req.Header
	}
	loc := strings.TrimSpace(header.Get("Location"))
	if loc == "" {
		return "", fmt.Errorf("%w: no location", ErrBadResponse)
	}
	return loc, nil
}

func hostOf(addr net.Addr) string {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return host
}

type descriptor struct {
	Device struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
	} `xml:"device"`
}

// FetchDescriptor loads a UPnP device description. Address defaults to the
// host of location.
func FetchDescriptor(ctx context.Context, client *http.Client, location string) (Device, error) {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return Device{}, fmt.Errorf("%w: bad location %q", ErrBadDescriptor, location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Device{}, fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Device{}, fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Device{}, fmt.Errorf("%w: status %d", ErrBadDescriptor, resp.StatusCode)
	}

	var d descriptor
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxDescriptor)).Decode(&d); err != nil {
		return Device{}, fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}
	return Device{
		Address:      u.Hostname(),
		Name:         strings.TrimSpace(d.Device.FriendlyName),
		Manufacturer: strings.TrimSpace(d.Device.Manufacturer),
		Model:        strings.TrimSpace(d.Device.ModelName),
		Location:     location,
	}, nil
}

func (s *Scanner) debug(msg string, kv ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, kv...)
	}
}
