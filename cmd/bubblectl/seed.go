package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/samirrijal/geobubbles/internal/bootstrap"
	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// seedFile is the fixture format read by the seed command.
type seedFile struct {
	Users []struct {
		ID          string             `json:"id"`
		Username    string             `json:"username"`
		DisplayName string             `json:"display_name"`
		Location    *domain.Coordinate `json:"location"`
	} `json:"users"`
	Friendships [][2]string `json:"friendships"`
	Messages    []struct {
		ID         string            `json:"id"`
		UserID     string            `json:"user_id"`
		Text       string            `json:"text"`
		Visibility domain.Visibility `json:"visibility"`
		Location   domain.GeoPoint   `json:"location"`
	} `json:"messages"`
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Load users, friendships and messages from a JSON fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var f seedFile
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			_, st, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := seed(cmd.Context(), st, &f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d friendships, %d messages\n",
				n.users, n.friendships, n.messages)
			return nil
		},
	}
}

type seedCounts struct{ users, friendships, messages int }

// seed writes the fixture. Messages keep their stored location as given so
// malformed geometry can be reproduced.
func seed(ctx context.Context, st *bootstrap.Stores, f *seedFile) (seedCounts, error) {
	var n seedCounts
	now := time.Now().UTC()

	for _, u := range f.Users {
		user := &domain.User{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Active: true, CreatedAt: now}
		if err := st.Users.Create(ctx, user); err != nil {
			return n, fmt.Errorf("user %s: %w", u.Username, err)
		}
		if u.Location != nil {
			if err := st.Users.UpdateLocation(ctx, user.ID, domain.FromCoordinate(*u.Location)); err != nil {
				return n, fmt.Errorf("user %s location: %w", u.Username, err)
			}
		}
		n.users++
	}

	for _, pair := range f.Friendships {
		if err := st.Friends.Add(ctx, pair[0], pair[1]); err != nil {
			return n, fmt.Errorf("friendship %s-%s: %w", pair[0], pair[1], err)
		}
		n.friendships++
	}

	msgs := make([]domain.Message, 0, len(f.Messages))
	for i, m := range f.Messages {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		vis := m.Visibility
		if vis == "" {
			vis = domain.VisibilityPublic
		}
		created := now.Add(-time.Duration(len(f.Messages)-i) * time.Second)
		msgs = append(msgs, domain.Message{
			ID: id, AuthorID: m.UserID, Text: m.Text, Visibility: vis,
			Location: m.Location, CreatedAt: created, UpdatedAt: created,
		})
	}
	if len(msgs) > 0 {
		if err := st.Messages.CreateBatch(ctx, msgs); err != nil {
			return n, fmt.Errorf("messages: %w", err)
		}
	}
	n.messages = len(msgs)
	return n, nil
}
