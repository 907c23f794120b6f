package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// ParseAllowList reads plain addresses and CIDR ranges. A plain address
// becomes a single-host prefix.
func ParseAllowList(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("allow list %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("allow list %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// IPWhitelist admits clients inside entries and answers 403 otherwise.
// Unparsable entries are skipped; callers validate with ParseAllowList at
// startup. An empty list admits everyone.
func IPWhitelist(entries []string) gin.HandlerFunc {
	var allowed []netip.Prefix
	for _, e := range entries {
		if p, err := ParseAllowList([]string{e}); err == nil {
			allowed = append(allowed, p...)
		}
	}
	open := len(entries) == 0
	return func(c *gin.Context) {
		if open || clientAllowed(c.ClientIP(), allowed) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

func clientAllowed(ip string, allowed []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range allowed {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
