package agent

import (
	"context"
	"fmt"
)

// Tunneler establishes the outbound connectivity the TUNNEL state needs
// to expose the agent's HTTP surface publicly. Concrete tunnel software
// (ngrok, cloudflared, a custom mesh client) is out of scope per spec.md
// §1, so this package ships the seam and three stubs keyed to
// tunnel_mode, leaving the implementation deliberately opaque.
type Tunneler interface {
	// Open establishes the tunnel and returns the public URL the
	// coordinator should use to reach this agent.
	Open(ctx context.Context) (publicURL string, err error)
	// MeshIP returns the overlay-network address this agent joined, if
	// any. Empty means no mesh credential was available.
	MeshIP() string
}

// NewTunneler picks the Tunneler implementation for mode ("named",
// "ephemeral", or "none"), matching config.Worker.TunnelMode.
func NewTunneler(mode, listenAddr string) (Tunneler, error) {
	switch mode {
	case "named":
		return &NamedTunneler{ListenAddr: listenAddr}, nil
	case "ephemeral":
		return &EphemeralTunneler{ListenAddr: listenAddr}, nil
	case "none", "":
		return &NoneTunneler{ListenAddr: listenAddr}, nil
	default:
		return nil, fmt.Errorf("unknown tunnel_mode %q", mode)
	}
}

// NamedTunneler stands in for a tunnel bound to a pre-registered,
// stable hostname (e.g. an ngrok reserved domain or a cloudflared named
// tunnel). A real deployment replaces Open with a call into that
// provider's SDK or CLI; this stub exists so the state machine and its
// tests have something to construct and call.
type NamedTunneler struct {
	ListenAddr string
	Hostname   string
}

func (t *NamedTunneler) Open(ctx context.Context) (string, error) {
	if t.Hostname == "" {
		return "", fmt.Errorf("named tunnel mode requires a configured hostname")
	}
	return "https://" + t.Hostname, nil
}

func (t *NamedTunneler) MeshIP() string { return "" }

// EphemeralTunneler stands in for a tunnel that mints a fresh random
// public URL each run (e.g. `ngrok http`'s default free-tier behavior).
type EphemeralTunneler struct {
	ListenAddr string
}

func (t *EphemeralTunneler) Open(ctx context.Context) (string, error) {
	return "", fmt.Errorf("ephemeral tunnel mode requires a tunnel binary wired in at deployment time")
}

func (t *EphemeralTunneler) MeshIP() string { return "" }

// NoneTunneler is used when the agent's HTTP surface is already directly
// reachable (e.g. it runs on a routable address inside the cluster), so
// the "tunnel" is just that address.
type NoneTunneler struct {
	ListenAddr string
}

func (t *NoneTunneler) Open(ctx context.Context) (string, error) {
	return "http://" + t.ListenAddr, nil
}

func (t *NoneTunneler) MeshIP() string { return "" }
