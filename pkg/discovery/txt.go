package discovery

import (
	"sort"
	"strings"
)

// TXT record keys advertised by a helper server.
const (
	TXTKeySoftware  = "software"
	TXTKeyTransport = "transport"
)

// ServerTXT holds the TXT attributes of an advertised server.
type ServerTXT struct {
	// Software names the server implementation.
	Software string

	// Transports lists the transports served, e.g. "udp".
	Transports []string

	// Extra holds any additional attributes.
	Extra map[string]string
}

// Encode returns the TXT strings. Empty attributes are omitted and extra
// keys are emitted in sorted order.
func (s ServerTXT) Encode() []string {
	var out []string
	if s.Software != "" {
		out = append(out, TXTKeySoftware+"="+s.Software)
	}
	if len(s.Transports) > 0 {
		out = append(out, TXTKeyTransport+"="+strings.Join(s.Transports, ","))
	}

	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+s.Extra[k])
	}
	return out
}

// ParseServerTXT parses TXT strings produced by Encode. Unknown keys land
// in Extra.
func ParseServerTXT(records []string) ServerTXT {
	var s ServerTXT
	for k, v := range ParseTXT(records) {
		switch k {
		case TXTKeySoftware:
			s.Software = v
		case TXTKeyTransport:
			if v != "" {
				s.Transports = strings.Split(v, ",")
			}
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]string)
			}
			s.Extra[k] = v
		}
	}
	return s
}

// ParseTXT parses "key=value" strings into a map. A record without "="
// is a boolean attribute with an empty value; the first occurrence of a
// key wins.
func ParseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		if r == "" {
			continue
		}
		k, v, _ := strings.Cut(r, "=")
		if _, exists := out[k]; exists {
			continue
		}
		out[k] = v
	}
	return out
}
