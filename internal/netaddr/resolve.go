// Package netaddr picks the local IPv4 address a process should advertise
// to remote peers.
package netaddr

import (
	"net"
	"os"
)

// Interface is the subset of a network interface the resolver looks at.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.IP
}

// Source says which step of the preference order produced an address.
type Source string

const (
	SourcePrivate  Source = "private-interface"
	SourcePublic   Source = "interface"
	SourceHost     Source = "host"
	SourceLoopback Source = "loopback"
)

// Resolution is the outcome of Resolve. Warning is set when the result is
// loopback and remote peers will likely be unable to connect.
type Resolution struct {
	IP      net.IP
	Source  Source
	Warning string
}

func (r Resolution) String() string { return r.IP.String() }

// Resolver enumerates interfaces and host addresses. The zero value uses
// the operating system.
type Resolver struct {
	Interfaces func() ([]Interface, error)
	HostAddrs  func() ([]net.IP, error)
}

// Resolve applies the preference order:
//  1. the first private-range IPv4 address on an active, non-loopback interface
//  2. the first other IPv4 address on such an interface
//  3. the first non-loopback address the host name resolves to
//  4. loopback, with a warning
func (r Resolver) Resolve() Resolution {
	interfaces := r.Interfaces
	if interfaces == nil {
		interfaces = SystemInterfaces
	}
	hostAddrs := r.HostAddrs
	if hostAddrs == nil {
		hostAddrs = SystemHostAddrs
	}

	var public net.IP
	if ifaces, err := interfaces(); err == nil {
		for _, ifc := range ifaces {
			if !ifc.Up || ifc.Loopback {
				continue
			}
			for _, ip := range ifc.Addrs {
				v4 := ip.To4()
				if v4 == nil || v4.IsLoopback() {
					continue
				}
				if v4.IsPrivate() {
					return Resolution{IP: v4, Source: SourcePrivate}
				}
				if public == nil {
					public = v4
				}
			}
		}
	}
	if public != nil {
		return Resolution{IP: public, Source: SourcePublic}
	}

	if addrs, err := hostAddrs(); err == nil {
		if ip := firstNonLoopback(addrs); ip != nil {
			return Resolution{IP: ip, Source: SourceHost}
		}
	}

	return Resolution{
		IP:      net.IPv4(127, 0, 0, 1).To4(),
		Source:  SourceLoopback,
		Warning: "no network address found, advertising loopback; remote clients may be unable to connect",
	}
}

// Resolve uses the operating system's interfaces and host name.
func Resolve() Resolution {
	return Resolver{}.Resolve()
}

func firstNonLoopback(addrs []net.IP) net.IP {
	var fallback net.IP
	for _, ip := range addrs {
		if ip.IsLoopback() || ip.IsUnspecified() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
		if fallback == nil {
			fallback = ip
		}
	}
	return fallback
}

// SystemInterfaces lists the host's interfaces with their IP addresses.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		entry := Interface{
			Name:     ifc.Name,
			Up:       ifc.Flags&net.FlagUp != 0,
			Loopback: ifc.Flags&net.FlagLoopback != 0,
		}
		for _, a := range addrs {
			switch v := a.(type) {
			case *net.IPNet:
				entry.Addrs = append(entry.Addrs, v.IP)
			case *net.IPAddr:
				entry.Addrs = append(entry.Addrs, v.IP)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// SystemHostAddrs resolves the host's own name.
func SystemHostAddrs() ([]net.IP, error) {
	name, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return net.LookupIP(name)
}
