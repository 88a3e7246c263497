// Package visibility decides which messages a viewer may see around a position.
package visibility

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/pkg/geospatial"
)

// Rule is one way a message can become visible to a viewer.
type Rule string

const (
	// RulePublic admits messages tagged public.
	RulePublic Rule = "public"
	// RuleFriends admits friends-only messages whose author is in the viewer's friend set.
	RuleFriends Rule = "friends"
	// RuleOwn admits the viewer's own messages regardless of their tag.
	RuleOwn Rule = "own"
)

// AllRules is the canonical rule set.
var AllRules = []Rule{RulePublic, RuleFriends, RuleOwn}

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("invalid visibility policy")

// subject is what a rule sees about a single candidate.
type subject struct {
	viewerID string
	friends  domain.FriendSet
	msg      *domain.Message
}

var predicates = map[Rule]func(s subject) bool{
	RulePublic: func(s subject) bool {
		return s.msg.Visibility == domain.VisibilityPublic
	},
	RuleFriends: func(s subject) bool {
		return s.msg.Visibility == domain.VisibilityFriends && s.friends.Contains(s.msg.AuthorID)
	},
	RuleOwn: func(s subject) bool {
		return s.viewerID != "" && s.msg.AuthorID == s.viewerID
	},
}

// Policy bundles the rules and numeric parameters of one filter invocation.
type Policy struct {
	Rules         []Rule
	MaxDistanceKm float64
	EarthRadiusKm float64
}

// DefaultPolicy enables every rule with the mean Earth radius.
func DefaultPolicy(maxDistanceKm float64) Policy {
	return Policy{
		Rules:         append([]Rule(nil), AllRules...),
		MaxDistanceKm: maxDistanceKm,
		EarthRadiusKm: geospatial.EarthRadiusKm,
	}
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	var errs []string
	if math.IsNaN(p.MaxDistanceKm) || math.IsInf(p.MaxDistanceKm, 0) || p.MaxDistanceKm <= 0 {
		errs = append(errs, fmt.Sprintf("max distance must be positive and finite, got %v", p.MaxDistanceKm))
	}
	if math.IsNaN(p.EarthRadiusKm) || math.IsInf(p.EarthRadiusKm, 0) || p.EarthRadiusKm <= 0 {
		errs = append(errs, fmt.Sprintf("earth radius must be positive, got %v", p.EarthRadiusKm))
	}
	if len(p.Rules) == 0 {
		errs = append(errs, "at least one rule is required")
	}
	for _, r := range p.Rules {
		if _, ok := predicates[r]; !ok {
			errs = append(errs, fmt.Sprintf("unknown rule %q", r))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(errs, "; "))
	}
	return nil
}

// admits returns the first enabled rule that lets the viewer see the message.
func (p Policy) admits(s subject) (Rule, bool) {
	for _, r := range p.Rules {
		if pred, ok := predicates[r]; ok && pred(s) {
			return r, true
		}
	}
	return "", false
}
