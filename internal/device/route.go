package device

// Route says where a device's commands run.
type Route int

// Routes.
const (
	RouteRemote Route = iota
	RouteLocal
)

func (r Route) String() string {
	if r == RouteLocal {
		return "local"
	}
	return "remote"
}

// RouteFor picks the local route only when hostname is exactly the local
// hostname. Aliases such as "localhost" or an IP of this machine go remote.
func RouteFor(hostname, localHostname string) Route {
	if hostname != "" && hostname == localHostname {
		return RouteLocal
	}
	return RouteRemote
}
