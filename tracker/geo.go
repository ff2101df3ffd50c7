package tracker

import (
	"net/netip"
	"strings"
)

// UnknownCountry is recorded when no locator is configured or a lookup
// fails. Location must never block or fail a hit.
const UnknownCountry = "000"

// Locator maps a remote IP to an ISO country code. Implementations wrap a
// GeoIP database; failures yield UnknownCountry, never an error.
type Locator interface {
	CountryCode(ip string) string
}

// NullLocator resolves everything to UnknownCountry.
type NullLocator struct{}

func (NullLocator) CountryCode(string) string { return UnknownCountry }

type geoBlock struct {
	prefix netip.Prefix
	code   string
}

// PrefixLocator resolves country codes from a static CIDR table. Suitable
// for tests and for deployments that maintain their own block lists.
type PrefixLocator struct {
	blocks []geoBlock
}

// NewPrefixLocator builds a locator from cidr → ISO-code entries. Invalid
// prefixes are dropped; codes are upper-cased.
func NewPrefixLocator(blocks map[string]string) *PrefixLocator {
	l := &PrefixLocator{}
	for cidr, code := range blocks {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		l.blocks = append(l.blocks, geoBlock{prefix: p, code: strings.ToUpper(code)})
	}
	return l
}

// CountryCode returns the code of the first containing prefix, or
// UnknownCountry when the IP is unparseable or unmatched.
func (l *PrefixLocator) CountryCode(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return UnknownCountry
	}
	addr = addr.Unmap()
	for _, b := range l.blocks {
		if b.prefix.Contains(addr) {
			return b.code
		}
	}
	return UnknownCountry
}
