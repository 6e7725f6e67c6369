package guard

import "strings"

// Action is the outcome of a guard decision.
type Action int

const (
	ActionNext Action = iota
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionNext:
		return "next"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Reason explains why a decision was taken. It is logged and used to
// decide whether the rejected route is remembered.
type Reason string

const (
	ReasonExcluded      Reason = "excluded"
	ReasonAPI           Reason = "api"
	ReasonLoginRequired Reason = "login_required"
	ReasonAuthenticated Reason = "authenticated"
	ReasonAllowed       Reason = "allowed"
)

// Decision is what the guard does with a request.
type Decision struct {
	Action   Action
	Location string
	Reason   Reason
}

// Decide maps a request path and session presence to a Decision. It is
// pure; cfg should come from GetDefaultConfig.
func Decide(path string, hasSession bool, cfg Config) Decision {
	if cfg.IsExcluded(path) {
		return Decision{Action: ActionNext, Reason: ReasonExcluded}
	}
	if cfg.IsAPI(path) {
		return Decision{Action: ActionNext, Reason: ReasonAPI}
	}

	public := cfg.IsPublic(path)
	switch {
	case !hasSession && !public && path != cfg.HomePath:
		return Decision{Action: ActionRedirect, Location: cfg.LoginPath, Reason: ReasonLoginRequired}
	case hasSession && public:
		return Decision{Action: ActionRedirect, Location: cfg.HomePath, Reason: ReasonAuthenticated}
	default:
		return Decision{Action: ActionNext, Reason: ReasonAllowed}
	}
}

// IsExcluded reports whether path is a static asset the guard never sees.
func (cfg Config) IsExcluded(path string) bool {
	return cfg.Exclude != nil && cfg.Exclude.MatchString(path)
}

// IsAPI reports whether path belongs to the API namespace.
func (cfg Config) IsAPI(path string) bool {
	return cfg.APIPrefix != "" && strings.HasPrefix(path, cfg.APIPrefix)
}

// IsPublic reports whether path is one of the public auth pages or below one.
func (cfg Config) IsPublic(path string) bool {
	for _, p := range cfg.PublicPaths {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
