package planner

import (
	"fmt"
	"sort"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
)

// SelectUsers picks the annotators a plan balances over. Explicit ids win;
// otherwise all selects every member and the default is the annotator
// roles. An id that is not a member is an error.
func SelectUsers(ms []cvat.Membership, ids []int, all bool) ([]User, error) {
	byID := make(map[int]cvat.Membership, len(ms))
	for _, m := range ms {
		byID[m.User.ID] = m
	}

	var users []User
	if len(ids) > 0 {
		for _, id := range ids {
			m, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("user %d is not a member of the organization", id)
			}
			users = append(users, User{ID: id, Name: m.User.Username})
		}
		return users, nil
	}

	for _, m := range ms {
		if all || m.IsAnnotator() {
			users = append(users, User{ID: m.User.ID, Name: m.User.Username})
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
