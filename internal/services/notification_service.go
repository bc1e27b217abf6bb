package services

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"regexp"
	"strings"

	"github.com/containrrr/shoutrrr"

	"github.com/Wikid82/equiptrack/internal/logger"
)

// NotificationService delivers short text messages to the shoutrrr URLs
// configured for the deployment (Slack, Discord, email, generic webhooks...).
type NotificationService struct {
	urls []string
	send func(url, message string) error
}

func NewNotificationService(urls []string) *NotificationService {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		normalized = append(normalized, normalizeURL(u))
	}
	return &NotificationService{urls: normalized, send: shoutrrr.Send}
}

// Enabled reports whether any destination is configured.
func (s *NotificationService) Enabled() bool {
	return s != nil && len(s.urls) > 0
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

// normalizeURL rewrites a pasted Discord webhook URL into shoutrrr's discord:// form.
func normalizeURL(rawURL string) string {
	matches := discordWebhookRegex.FindStringSubmatch(rawURL)
	if len(matches) == 3 {
		return fmt.Sprintf("discord://%s@%s", matches[2], matches[1])
	}
	return rawURL
}

// Send delivers title and message to every configured destination. Every
// destination is attempted; the returned error joins the individual failures.
func (s *NotificationService) Send(title, message string) error {
	if !s.Enabled() {
		return nil
	}
	// Use newline for better formatting in chat apps
	msg := fmt.Sprintf("%s\n\n%s", title, message)

	var errs []error
	for _, url := range s.urls {
		// Validate HTTP/HTTPS destinations used by shoutrrr to reduce SSRF risk
		if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			if _, err := validateWebhookURL(url); err != nil {
				errs = append(errs, fmt.Errorf("skip destination: %w", err))
				continue
			}
		}
		if err := s.send(url, msg); err != nil {
			logger.Log().WithError(err).Warn("Failed to send notification")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isPrivateIP returns true for RFC1918, loopback and link-local addresses.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// IPv4 RFC1918
	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 10:
			return true
		case ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31:
			return true
		case ip4[0] == 192 && ip4[1] == 168:
			return true
		}
	}

	// IPv6 unique local addresses fc00::/7
	if ip.To16() != nil && strings.HasPrefix(ip.String(), "fc") {
		return true
	}

	return false
}

// validateWebhookURL parses and validates webhook URLs and ensures
// the resolved addresses are not private/local.
func validateWebhookURL(raw string) (*neturl.URL, error) {
	u, err := neturl.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing host")
	}

	// Allow explicit loopback/localhost addresses for local tests.
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return u, nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return nil, fmt.Errorf("disallowed host IP: %s", ip.String())
		}
	}
	return u, nil
}
