package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

// dockerHostGateway is the name Docker Desktop and host-gateway setups give the host machine.
const dockerHostGateway = "host.docker.internal"

var (
	inDockerOnce sync.Once
	inDocker     bool
)

// IsRunningInDocker reports whether the process runs inside a Docker container,
// detected by the /.dockerenv marker. The result is cached after the first call.
func IsRunningInDocker() bool {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	return inDocker
}

// ResolveHostForDocker maps a loopback data source host to host.docker.internal
// when running in a container. Any other host is returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

// ResolveURLForDocker applies ResolveHostForDocker to the host of rawURL, keeping
// scheme, port and path. Used for the search server URL. Unparseable URLs pass through.
func ResolveURLForDocker(rawURL string) string {
	return resolveURL(rawURL, IsRunningInDocker())
}

func resolveHost(host string, docker bool) string {
	if !docker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostGateway
	}
	return host
}

func resolveURL(rawURL string, docker bool) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	host := u.Hostname()
	resolved := resolveHost(host, docker)
	if resolved == host {
		return rawURL
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(resolved, port)
	} else {
		u.Host = resolved
	}
	return u.String()
}
