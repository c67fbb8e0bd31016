package domain

import (
	"fmt"
	"slices"
	"sync"
)

// Directory holds every activity and its roster in memory.
//
// A single lock covers the check-then-act sequence of Signup and Unregister,
// so an email can never end up on two rosters. The owners index maps each
// registered email to the activity holding it.
type Directory struct {
	mu         sync.RWMutex
	order      []string
	activities map[string]*Activity
	owners     map[string]string
}

// NewDirectory seeds a Directory from the supplied catalog. Activities keep
// the catalog order in List.
func NewDirectory(catalog []Activity) (*Directory, error) {
	d := &Directory{
		order:      make([]string, 0, len(catalog)),
		activities: make(map[string]*Activity, len(catalog)),
		owners:     make(map[string]string),
	}

	for _, seed := range catalog {
		if seed.Name == "" {
			return nil, fmt.Errorf("%w: activity without a name", ErrInvalidCatalog)
		}
		if _, exists := d.activities[seed.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate activity %q", ErrInvalidCatalog, seed.Name)
		}

		activity := seed.clone()
		for _, email := range activity.Participants {
			if owner, taken := d.owners[email]; taken {
				return nil, fmt.Errorf("%w: %s listed in both %q and %q", ErrInvalidCatalog, email, owner, activity.Name)
			}
			d.owners[email] = activity.Name
		}

		d.activities[activity.Name] = &activity
		d.order = append(d.order, activity.Name)
	}
	return d, nil
}

// List returns a copy of every activity in catalog order.
func (d *Directory) List() []Activity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Activity, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.activities[name].clone())
	}
	return out
}

// Get returns a copy of a single activity.
func (d *Directory) Get(name string) (Activity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	activity, ok := d.activities[name]
	if !ok {
		return Activity{}, ErrActivityNotFound
	}
	return activity.clone(), nil
}

// Signup appends email to the named activity's roster and returns the new
// participant count.
func (d *Directory) Signup(name, email string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	activity, ok := d.activities[name]
	if !ok {
		return 0, ErrActivityNotFound
	}
	if _, taken := d.owners[email]; taken {
		return 0, ErrAlreadyRegistered
	}

	activity.Participants = append(activity.Participants, email)
	d.owners[email] = name
	return len(activity.Participants), nil
}

// Unregister removes email from the named activity's roster and returns the
// remaining participant count.
func (d *Directory) Unregister(name, email string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	activity, ok := d.activities[name]
	if !ok {
		return 0, ErrActivityNotFound
	}
	if owner, taken := d.owners[email]; !taken || owner != name {
		return 0, ErrParticipantNotFound
	}

	idx := slices.Index(activity.Participants, email)
	if idx < 0 {
		return 0, ErrParticipantNotFound
	}
	activity.Participants = slices.Delete(activity.Participants, idx, idx+1)
	delete(d.owners, email)
	return len(activity.Participants), nil
}

// ActivityOf reports which activity currently holds email.
func (d *Directory) ActivityOf(email string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.owners[email]
	return name, ok
}
