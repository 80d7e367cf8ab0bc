// Package guard decides, per request, whether a page request is let through or redirected
// based on identity presence, the requested path and whether the seller owns a store.
package guard

import (
	"strings"
)

const (
	TargetLogin      = "/login"
	TargetDashboard  = "/dashboard"
	TargetOnboarding = "/onboarding"
)

// PathClass groups page paths by how the guard treats them.
type PathClass int

const (
	PathOther PathClass = iota
	PathAuthPage
	PathDashboard
	PathOnboarding
)

func (c PathClass) String() string {
	switch c {
	case PathAuthPage:
		return "auth"
	case PathDashboard:
		return "dashboard"
	case PathOnboarding:
		return "onboarding"
	default:
		return "other"
	}
}

var authPages = map[string]struct{}{
	"/login":           {},
	"/register":        {},
	"/forgot-password": {},
	"/reset-password":  {},
}

// Classify maps a request path to its PathClass. Dashboard and onboarding match their whole subtree.
func Classify(path string) PathClass {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if _, ok := authPages[path]; ok {
		return PathAuthPage
	}
	if hasSegmentPrefix(path, TargetDashboard) {
		return PathDashboard
	}
	if hasSegmentPrefix(path, TargetOnboarding) {
		return PathOnboarding
	}
	return PathOther
}

func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Decision is the outcome of evaluating the table. Target is set only when Allow is false.
type Decision struct {
	Allow  bool
	Target string
}

var allow = Decision{Allow: true}

type tri int

const (
	either tri = iota
	yes
	no
)

func (t tri) matches(v bool) bool {
	return t == either || (t == yes) == v
}

type rule struct {
	identity tri
	class    PathClass
	store    tri
	target   string
}

// rules is evaluated top to bottom; the first matching row wins and no match means allow.
var rules = []rule{
	{identity: no, class: PathOnboarding, store: either, target: TargetLogin},
	{identity: no, class: PathDashboard, store: either, target: TargetLogin},
	{identity: yes, class: PathAuthPage, store: either, target: TargetDashboard},
	{identity: yes, class: PathDashboard, store: no, target: TargetOnboarding},
	{identity: yes, class: PathOnboarding, store: yes, target: TargetDashboard},
}

// Decide evaluates the table for one request. hasStore is called at most once, and only when
// a row whose identity and path match depends on store ownership. A lookup error is returned
// together with an allow decision.
func Decide(identity bool, path string, hasStore func() (bool, error)) (Decision, error) {
	class := Classify(path)

	var (
		looked bool
		owns   bool
	)
	for _, r := range rules {
		if r.class != class || !r.identity.matches(identity) {
			continue
		}
		if r.store != either {
			if !looked {
				var err error
				if owns, err = hasStore(); err != nil {
					return allow, err
				}
				looked = true
			}
			if !r.store.matches(owns) {
				continue
			}
		}
		return Decision{Target: r.target}, nil
	}
	return allow, nil
}
