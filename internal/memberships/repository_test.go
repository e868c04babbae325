package memberships

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmwise/farmwise/internal/authz"
)

func TestSortMembersByRankThenName(t *testing.T) {
	repo := NewRepository(nil)
	members := []authz.Member{
		{UserID: "u1", Role: authz.RoleWorker, DisplayName: "Zelda"},
		{UserID: "u2", Role: authz.RoleOwner, DisplayName: "Bert"},
		{UserID: "u3", Role: authz.RoleManager, DisplayName: "ana"},
		{UserID: "u4", Role: authz.RoleManager, DisplayName: "Ben"},
		{UserID: "u5", Role: authz.RoleWorker, DisplayName: "adam"},
	}
	repo.sortMembers(members)

	got := make([]string, 0, len(members))
	for _, m := range members {
		got = append(got, m.UserID)
	}
	// Owner first, then managers ordered case-insensitively, then workers.
	assert.Equal(t, []string{"u2", "u3", "u4", "u5", "u1"}, got)
}
