package httpx

import (
	"net/url"
	"strings"
	"sync/atomic"
)

// DirectRelay names the pass-through pseudo-relay used when no relay
// endpoints are configured.
const DirectRelay = "direct"

// Relays routes outbound requests through a rotating list of relay
// endpoints. Each endpoint accepts a URL-encoded target URL, either
// appended or substituted for a "%s" placeholder. The cursor advances
// round-robin across attempts, so a relay that just failed is not the
// first one retried.
type Relays struct {
	endpoints []string
	cursor    atomic.Uint64
}

func NewRelays(endpoints []string) *Relays {
	clean := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		e = strings.TrimSpace(e)
		if e != "" {
			clean = append(clean, e)
		}
	}
	return &Relays{endpoints: clean}
}

// Wrap picks the next relay and returns the wrapped target URL plus
// the relay endpoint used. With no relays configured the target is
// returned untouched under DirectRelay.
func (r *Relays) Wrap(target string) (wrapped, relay string) {
	if r == nil || len(r.endpoints) == 0 {
		return target, DirectRelay
	}
	idx := (r.cursor.Add(1) - 1) % uint64(len(r.endpoints))
	relay = r.endpoints[idx]
	escaped := url.QueryEscape(target)
	if strings.Contains(relay, "%s") {
		return strings.Replace(relay, "%s", escaped, 1), relay
	}
	return relay + escaped, relay
}

// Len reports the number of configured relay endpoints.
func (r *Relays) Len() int {
	if r == nil {
		return 0
	}
	return len(r.endpoints)
}
