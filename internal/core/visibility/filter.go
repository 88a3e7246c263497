package visibility

import (
	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// Request is the input of one Filter call.
type Request struct {
	ViewerID   string
	Viewer     domain.Coordinate
	Candidates []domain.Message
	Friends    domain.FriendSet
}

// Rejection records a candidate skipped because its location could not be converted.
type Rejection struct {
	MessageID string
	Err       error
}

// Result holds the visible messages in candidate order plus any skipped records.
type Result struct {
	Visible  []domain.Message
	Rejected []Rejection
}

// Decision is the verdict for a single message.
type Decision struct {
	Visible    bool
	InRange    bool
	Rule       Rule
	DistanceKm float64
}

// Filter returns the candidates the viewer may see within policy.MaxDistanceKm.
// A candidate with malformed geometry is skipped and reported in Result.Rejected;
// it never aborts the rest of the feed. Inputs are not modified.
func Filter(policy Policy, req Request) Result {
	res := Result{Visible: make([]domain.Message, 0, len(req.Candidates))}

	for i := range req.Candidates {
		d, err := Evaluate(policy, req.ViewerID, req.Viewer, req.Friends, &req.Candidates[i])
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{MessageID: req.Candidates[i].ID, Err: err})
			continue
		}
		if !d.Visible {
			continue
		}
		m := req.Candidates[i]
		dist := d.DistanceKm
		m.DistanceKm = &dist
		res.Visible = append(res.Visible, m)
	}
	return res
}

// Evaluate scores a single message for the viewer. The error is non-nil only
// when the message location cannot be converted.
func Evaluate(policy Policy, viewerID string, viewer domain.Coordinate, friends domain.FriendSet, msg *domain.Message) (Decision, error) {
	at, err := domain.ToCoordinate(msg.Location)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{DistanceKm: viewer.DistanceTo(at, policy.EarthRadiusKm)}
	d.InRange = d.DistanceKm <= policy.MaxDistanceKm

	rule, ok := policy.admits(subject{viewerID: viewerID, friends: friends, msg: msg})
	d.Rule = rule
	d.Visible = d.InRange && ok
	return d, nil
}

// CanSee applies the rules without the distance bound. Replies and direct
// lookups are not geofenced.
func CanSee(policy Policy, viewerID string, friends domain.FriendSet, msg *domain.Message) bool {
	_, ok := policy.admits(subject{viewerID: viewerID, friends: friends, msg: msg})
	return ok
}
