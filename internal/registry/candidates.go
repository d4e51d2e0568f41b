package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// PortRange is an inclusive range of ports.
type PortRange struct {
	First int
	Last  int
}

// ParsePortRange parses "8000-8001" or a single port "8000".
func ParsePortRange(s string) (PortRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PortRange{}, nil
	}

	lo, hi, found := strings.Cut(s, "-")
	first, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port range %q: %w", s, err)
	}
	last := first
	if found {
		last, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range %q: %w", s, err)
		}
	}

	r := PortRange{First: first, Last: last}
	if err := r.validate(); err != nil {
		return PortRange{}, fmt.Errorf("invalid port range %q: %w", s, err)
	}
	return r, nil
}

func (r PortRange) validate() error {
	if r.First < 1 || r.Last > 65535 {
		return fmt.Errorf("ports must be within 1-65535")
	}
	if r.First > r.Last {
		return fmt.Errorf("first port %d is after last port %d", r.First, r.Last)
	}
	return nil
}

// String renders the range the way ParsePortRange reads it.
func (r PortRange) String() string {
	if r.First == 0 && r.Last == 0 {
		return ""
	}
	if r.First == r.Last {
		return strconv.Itoa(r.First)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// CandidateSpec describes where to look for backends.
type CandidateSpec struct {
	Addresses  []string // explicit base URLs, probed first
	Scheme     string
	Host       string
	Ports      PortRange
	PathPrefix string
}

// Candidates expands a CandidateSpec into an ordered, de-duplicated address list.
func Candidates(cs CandidateSpec) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		addr = strings.TrimRight(strings.TrimSpace(addr), "/")
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}

	for _, addr := range cs.Addresses {
		add(addr)
	}

	if cs.Host != "" && cs.Ports.First > 0 {
		scheme := cs.Scheme
		if scheme == "" {
			scheme = "http"
		}
		prefix := cs.PathPrefix
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		for port := cs.Ports.First; port <= cs.Ports.Last; port++ {
			add(fmt.Sprintf("%s://%s:%d%s", scheme, cs.Host, port, prefix))
		}
	}
	return out
}
