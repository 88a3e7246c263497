package domain

import "sort"

// FriendSet is the set of user IDs a viewer has befriended.
// Every friend-list shape is normalised into a FriendSet before filtering.
type FriendSet map[string]struct{}

// NewFriendSet builds a set from IDs, ignoring empty strings.
func NewFriendSet(ids ...string) FriendSet {
	s := make(FriendSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// FriendSetFromNames normalises an id→name mapping.
func FriendSetFromNames(names map[string]string) FriendSet {
	s := make(FriendSet, len(names))
	for id := range names {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// FriendSetFromFriends normalises a list of friend records.
func FriendSetFromFriends(friends []Friend) FriendSet {
	s := make(FriendSet, len(friends))
	for _, f := range friends {
		if f.UserID != "" {
			s[f.UserID] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s FriendSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of friends.
func (s FriendSet) Len() int { return len(s) }

// IDs returns the members in sorted order.
func (s FriendSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
