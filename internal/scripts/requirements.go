package scripts

import "strings"

// Capability is one piece of file data a script may ask for.
type Capability uint8

const (
	CapPath Capability = 1 << iota
	CapStat
	CapArchive
	CapFileDB
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapPath, "path"},
	{CapStat, "stat"},
	{CapArchive, "archive"},
	{CapFileDB, "file_db"},
}

func (c Capability) String() string {
	for _, cn := range capabilityNames {
		if cn.cap == c {
			return cn.name
		}
	}
	return "unknown"
}

// ParseCapability maps a `requires` token to its capability.
func ParseCapability(token string) (Capability, bool) {
	for _, cn := range capabilityNames {
		if cn.name == token {
			return cn.cap, true
		}
	}
	return 0, false
}

// Requirements is the set of capabilities a script declared. It is fixed
// when the script is loaded.
type Requirements uint8

// Has reports whether c is in the set.
func (r Requirements) Has(c Capability) bool {
	return r&Requirements(c) != 0
}

// With returns the set plus c.
func (r Requirements) With(c Capability) Requirements {
	return r | Requirements(c)
}

// Union returns the capabilities in either set.
func (r Requirements) Union(other Requirements) Requirements {
	return r | other
}

// Capabilities lists the members of the set in declaration order.
func (r Requirements) Capabilities() []Capability {
	var caps []Capability
	for _, cn := range capabilityNames {
		if r.Has(cn.cap) {
			caps = append(caps, cn.cap)
		}
	}
	return caps
}

func (r Requirements) String() string {
	caps := r.Capabilities()
	if len(caps) == 0 {
		return "none"
	}
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}
