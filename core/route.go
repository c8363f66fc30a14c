package core

// Route is the controller's dispatch decision for the next step of a turn.
// It is a closed enum: the engine's transition table switches over it
// exhaustively and raw strings never leak past parsing.
type Route string

// Route values. RouteNone means no further domain work this turn; the engine
// hands the turn to the long-term memory agent.
const (
	RouteMail     Route = "mail"
	RouteCalendar Route = "calendar"
	RouteContacts Route = "contacts"
	RouteBrowser  Route = "browser"
	RouteResearch Route = "research"
	RouteNone     Route = "none"
)

// ParseRoute maps a controller-provided string onto the closed Route set.
// Unknown or empty input degrades to RouteNone so a confused controller can
// never dispatch to a worker that does not exist.
func ParseRoute(s string) Route {
	switch Route(normalize(s)) {
	case RouteMail:
		return RouteMail
	case RouteCalendar:
		return RouteCalendar
	case RouteContacts:
		return RouteContacts
	case RouteBrowser:
		return RouteBrowser
	case RouteResearch:
		return RouteResearch
	default:
		return RouteNone
	}
}

// Worker returns the worker kind a route dispatches to. The boolean is false
// for RouteNone, which has no worker.
func (r Route) Worker() (WorkerKind, bool) {
	switch r {
	case RouteMail:
		return WorkerMail, true
	case RouteCalendar:
		return WorkerCalendar, true
	case RouteContacts:
		return WorkerContacts, true
	case RouteBrowser:
		return WorkerBrowser, true
	case RouteResearch:
		return WorkerResearch, true
	default:
		return "", false
	}
}

// WorkerKind identifies one worker loop and its private sub-log. WorkerMemory
// owns a sub-log like the others but is never a route target; it runs once at
// the end of every turn.
type WorkerKind string

// Worker kinds.
const (
	WorkerMail     WorkerKind = "mail"
	WorkerCalendar WorkerKind = "calendar"
	WorkerContacts WorkerKind = "contacts"
	WorkerBrowser  WorkerKind = "browser"
	WorkerResearch WorkerKind = "research"
	WorkerMemory   WorkerKind = "memory"
)

// AllWorkers lists every worker kind in a stable order, used when resetting
// or summarizing sub-logs.
func AllWorkers() []WorkerKind {
	return []WorkerKind{WorkerMail, WorkerCalendar, WorkerContacts, WorkerBrowser, WorkerResearch, WorkerMemory}
}

func normalize(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
