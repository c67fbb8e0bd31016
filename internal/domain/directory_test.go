package domain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() []Activity {
	return []Activity{
		{Name: "Chess Club", Description: "Strategy games", Schedule: "Fridays", MaxParticipants: 12},
		{Name: "Gym Class", Description: "Sports", Schedule: "Mondays", MaxParticipants: 30, Participants: []string{"john@x.com"}},
		{Name: "Art Club", Description: "Painting", Schedule: "Thursdays", MaxParticipants: 15},
	}
}

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	dir, err := NewDirectory(testCatalog())
	require.NoError(t, err)
	return dir
}

func participantsOf(t *testing.T, dir *Directory, name string) []string {
	t.Helper()
	activity, err := dir.Get(name)
	require.NoError(t, err)
	return activity.Participants
}

func TestDirectoryScenario(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.Signup("Chess Club", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com"}, participantsOf(t, dir, "Chess Club"))

	_, err = dir.Signup("Gym Class", "a@x.com")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.Equal(t, []string{"john@x.com"}, participantsOf(t, dir, "Gym Class"))

	_, err = dir.Unregister("Chess Club", "a@x.com")
	require.NoError(t, err)
	for _, activity := range dir.List() {
		require.NotContains(t, activity.Participants, "a@x.com")
	}

	_, err = dir.Unregister("Chess Club", "a@x.com")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestDirectoryListIncludesEveryActivity(t *testing.T) {
	dir := newTestDirectory(t)

	activities := dir.List()
	require.Len(t, activities, 3)
	require.Equal(t, "Chess Club", activities[0].Name)
	require.Equal(t, "Gym Class", activities[1].Name)
	require.Equal(t, "Art Club", activities[2].Name)
	for _, activity := range activities {
		require.NotNil(t, activity.Participants, "participants of %s", activity.Name)
	}
}

func TestDirectoryListReturnsCopies(t *testing.T) {
	dir := newTestDirectory(t)

	activities := dir.List()
	activities[1].Participants[0] = "mallory@x.com"
	activities[0].Participants = append(activities[0].Participants, "eve@x.com")

	require.Equal(t, []string{"john@x.com"}, participantsOf(t, dir, "Gym Class"))
	require.Empty(t, participantsOf(t, dir, "Chess Club"))
}

func TestDirectorySignupUnknownActivity(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.Signup("chess club", "a@x.com")
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = dir.Signup("Chess  Club", "a@x.com")
	require.ErrorIs(t, err, ErrActivityNotFound)

	_, registered := dir.ActivityOf("a@x.com")
	require.False(t, registered)
}

func TestDirectorySignupSameActivityTwice(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.Signup("Art Club", "b@x.com")
	require.NoError(t, err)
	_, err = dir.Signup("Art Club", "b@x.com")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.Equal(t, []string{"b@x.com"}, participantsOf(t, dir, "Art Club"))
}

func TestDirectorySignupPreservesOrder(t *testing.T) {
	dir := newTestDirectory(t)

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		_, err := dir.Signup("Chess Club", email)
		require.NoError(t, err)
	}
	count, err := dir.Unregister("Chess Club", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, []string{"c@x.com", "b@x.com"}, participantsOf(t, dir, "Chess Club"))
}

func TestDirectorySignupIgnoresCapacity(t *testing.T) {
	dir, err := NewDirectory([]Activity{{Name: "Tiny", MaxParticipants: 1}})
	require.NoError(t, err)

	_, err = dir.Signup("Tiny", "a@x.com")
	require.NoError(t, err)
	count, err := dir.Signup("Tiny", "b@x.com")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	activity, err := dir.Get("Tiny")
	require.NoError(t, err)
	require.Equal(t, -1, activity.SpotsLeft())
}

func TestDirectoryUnregisterNonMember(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.Unregister("Unknown", "john@x.com")
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	// john is registered, but for a different activity.
	_, err = dir.Unregister("Chess Club", "john@x.com")
	require.ErrorIs(t, err, ErrParticipantNotFound)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, []string{"john@x.com"}, participantsOf(t, dir, "Gym Class"))
}

func TestDirectorySignupAfterUnregisterMovesActivity(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.Unregister("Gym Class", "john@x.com")
	require.NoError(t, err)
	_, err = dir.Signup("Chess Club", "john@x.com")
	require.NoError(t, err)

	owner, ok := dir.ActivityOf("john@x.com")
	require.True(t, ok)
	require.Equal(t, "Chess Club", owner)
}

func TestNewDirectoryRejectsBrokenCatalog(t *testing.T) {
	cases := map[string][]Activity{
		"missing name": {{Description: "nameless"}},
		"duplicate activity": {
			{Name: "Chess Club"},
			{Name: "Chess Club"},
		},
		"email on two rosters": {
			{Name: "Chess Club", Participants: []string{"a@x.com"}},
			{Name: "Gym Class", Participants: []string{"a@x.com"}},
		},
		"email twice on one roster": {
			{Name: "Chess Club", Participants: []string{"a@x.com", "a@x.com"}},
		},
	}

	for name, catalog := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewDirectory(catalog)
			require.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestNewDirectoryCopiesSeed(t *testing.T) {
	catalog := testCatalog()
	dir, err := NewDirectory(catalog)
	require.NoError(t, err)

	catalog[1].Participants[0] = "mallory@x.com"
	require.Equal(t, []string{"john@x.com"}, participantsOf(t, dir, "Gym Class"))
}

func TestDirectoryConcurrentSignupSameEmail(t *testing.T) {
	dir := newTestDirectory(t)
	names := []string{"Chess Club", "Gym Class", "Art Club"}

	const attempts = 30
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := dir.Signup(name, "race@x.com"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(names[i%len(names)])
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	total := 0
	for _, activity := range dir.List() {
		for _, email := range activity.Participants {
			if email == "race@x.com" {
				total++
			}
		}
	}
	require.Equal(t, 1, total)
}

func TestDirectoryConcurrentDistinctSignups(t *testing.T) {
	dir := newTestDirectory(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := dir.Signup("Chess Club", fmt.Sprintf("user%d@x.com", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, participantsOf(t, dir, "Chess Club"), 50)
}
