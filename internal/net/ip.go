package net

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

// LinkScheme prefixes the share links a relay prints on startup.
const LinkScheme = "localboard://"

// ShareLink builds the link other participants use to reach a relay.
func ShareLink(host string, port int) string {
	return fmt.Sprintf("%s%s:%d", LinkScheme, host, port)
}

// AddressFromLink extracts host:port from a share link.
func AddressFromLink(link string) string {
	address := strings.TrimPrefix(link, LinkScheme)
	return strings.TrimSuffix(address, "/")
}

// routeTarget is only used to pick a route; no packet is sent to it.
const routeTarget = "8.8.8.8:80"

// GetOutgoingIP returns the IPv4 address other machines on the LAN should use
// to reach this relay. It falls back to the first address of an up,
// non-loopback interface on networks without a default route, and to
// loopback when there is none.
func GetOutgoingIP() (string, error) {
	ip, err := routedIP()
	if err == nil {
		return ip.String(), nil
	}
	log.Debug().Err(err).Msg("[NET] no default route, scanning interfaces")

	ip, err = interfaceIP()
	if err != nil {
		return "", err
	}
	if ip == nil {
		log.Warn().Msg("[NET] no LAN address found, share link only works locally")
		return "127.0.0.1", nil
	}
	return ip.String(), nil
}

// routedIP asks the kernel which source address it would use towards
// routeTarget. Connecting a UDP socket does not send anything.
func routedIP() (net.IP, error) {
	conn, err := net.Dial("udp4", routeTarget)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsUnspecified() {
		return nil, fmt.Errorf("no source address towards %s", routeTarget)
	}
	return addr.IP, nil
}

func interfaceIP() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				if v4 := ipnet.IP.To4(); v4 != nil {
					return v4, nil
				}
			}
		}
	}
	return nil, nil
}
