package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/visibility"
)

// filterInput is one offline filter invocation.
type filterInput struct {
	ViewerID string            `json:"viewer_id"`
	Viewer   domain.Coordinate `json:"viewer"`
	// RadiusKm falls back to the --radius-km flag when omitted.
	RadiusKm *float64 `json:"radius_km"`
	// Friends may be a list of ids, an id→name object, or a list of friend records.
	Friends  json.RawMessage  `json:"friends"`
	Rules    []string         `json:"rules"`
	Messages []domain.Message `json:"messages"`
}

type filterRejection struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

type filterOutput struct {
	Visible  []domain.Message  `json:"visible"`
	Rejected []filterRejection `json:"rejected"`
}

// parseFriends normalises the accepted friend-list shapes into a FriendSet.
func parseFriends(raw json.RawMessage) (domain.FriendSet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.NewFriendSet(), nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return domain.NewFriendSet(ids...), nil
	}
	var names map[string]string
	if err := json.Unmarshal(raw, &names); err == nil {
		return domain.FriendSetFromNames(names), nil
	}
	var friends []domain.Friend
	if err := json.Unmarshal(raw, &friends); err == nil {
		return domain.FriendSetFromFriends(friends), nil
	}
	return nil, fmt.Errorf("friends must be a list of ids, an id to name object, or a list of friend records")
}

// runFilter applies the visibility filter to one decoded input.
func runFilter(in *filterInput, defaultRadiusKm float64) (*filterOutput, error) {
	friends, err := parseFriends(in.Friends)
	if err != nil {
		return nil, err
	}
	viewer, err := domain.NewCoordinate(in.Viewer.Lat, in.Viewer.Lon)
	if err != nil {
		return nil, fmt.Errorf("viewer: %w", err)
	}

	radius := defaultRadiusKm
	if in.RadiusKm != nil {
		radius = *in.RadiusKm
	}
	policy := visibility.DefaultPolicy(radius)
	if len(in.Rules) > 0 {
		policy.Rules = policy.Rules[:0]
		for _, r := range in.Rules {
			policy.Rules = append(policy.Rules, visibility.Rule(r))
		}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	res := visibility.Filter(policy, visibility.Request{
		ViewerID:   in.ViewerID,
		Viewer:     viewer,
		Candidates: in.Messages,
		Friends:    friends,
	})

	out := &filterOutput{Visible: res.Visible, Rejected: []filterRejection{}}
	for _, r := range res.Rejected {
		out.Rejected = append(out.Rejected, filterRejection{MessageID: r.MessageID, Error: r.Err.Error()})
	}
	return out, nil
}

func newFilterCmd() *cobra.Command {
	var radiusKm float64
	cmd := &cobra.Command{
		Use:   "filter <file.json|->",
		Short: "Run the visibility filter offline and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var in filterInput
			if err := json.NewDecoder(r).Decode(&in); err != nil {
				return fmt.Errorf("parse input: %w", err)
			}
			out, err := runFilter(&in, radiusKm)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().Float64Var(&radiusKm, "radius-km", 0.2, "radius in km for inputs without radius_km")
	return cmd
}
