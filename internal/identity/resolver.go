package identity

import "github.com/banshee-data/presence.report/internal/track"

// Resolver combines manufacturer lookup and network hints into the
// Identity handed to the registry each cycle. Both sources may be nil.
type Resolver struct {
	oui   ManufacturerSource
	hints HintSource
}

// NewResolver creates a Resolver over the given sources.
func NewResolver(oui ManufacturerSource, hints HintSource) *Resolver {
	return &Resolver{oui: oui, hints: hints}
}

// Resolve produces the best identity currently known for mac. Fields
// fall back to prior when the sources have nothing newer, and the
// device type is recomputed whenever the inputs improve on it.
func (r *Resolver) Resolve(mac string, prior track.Identity) track.Identity {
	ident := track.Identity{
		Hostname:  prior.Hostname,
		IPAddress: prior.IPAddress,
	}

	if r.hints != nil {
		if h, ok := r.hints.Hint(mac); ok {
			if h.Hostname != "" {
				ident.Hostname = h.Hostname
			}
			if h.IPAddress != "" {
				ident.IPAddress = h.IPAddress
			}
		}
	}

	ident.Manufacturer = prior.Manufacturer
	if ident.Manufacturer == "" && r.oui != nil {
		ident.Manufacturer = r.oui.Manufacturer(mac)
	}

	ident.DeviceType = GuessDeviceType(ident.Hostname, ident.Manufacturer)
	if ident.DeviceType == track.UnknownDevice && prior.DeviceType != "" {
		ident.DeviceType = prior.DeviceType
	}
	return ident
}
