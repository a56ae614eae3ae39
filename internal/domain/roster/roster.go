package roster

import (
	"context"
	"fmt"
	"strings"
)

// Repository loads the roster from a store.
type Repository interface {
	List(ctx context.Context) ([]Doctor, error)
}

// Roster resolves physician references against a fixed list of doctors.
// A reference matches on id, full name, or a surname that only one doctor
// carries, ignoring case and a leading "Dr." title.
type Roster struct {
	doctors []Doctor
	index   map[string]int
}

// New builds a Roster. Surnames shared by several doctors are not indexed.
func New(doctors []Doctor) *Roster {
	r := &Roster{
		doctors: append([]Doctor(nil), doctors...),
		index:   make(map[string]int),
	}

	surnames := make(map[string][]int)
	for i, d := range r.doctors {
		r.index[normalize(d.ID)] = i
		r.index[normalize(d.Name)] = i
		if fields := strings.Fields(d.Name); len(fields) > 1 {
			last := normalize(fields[len(fields)-1])
			surnames[last] = append(surnames[last], i)
		}
	}
	for last, idx := range surnames {
		if _, taken := r.index[last]; taken || len(idx) != 1 {
			continue
		}
		r.index[last] = idx[0]
	}
	return r
}

// Default returns a Roster over DefaultDoctors.
func Default() *Roster {
	return New(DefaultDoctors)
}

// Load reads the roster from repo. An empty table is an error so that a
// missing seed migration is noticed at startup.
func Load(ctx context.Context, repo Repository) (*Roster, error) {
	doctors, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load doctor roster: %w", err)
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("doctor roster is empty")
	}
	return New(doctors), nil
}

// Lookup resolves ref to a doctor.
func (r *Roster) Lookup(ref string) (Doctor, bool) {
	i, ok := r.index[normalize(ref)]
	if !ok {
		return Doctor{}, false
	}
	return r.doctors[i], true
}

// Contains reports whether ref resolves to a doctor.
func (r *Roster) Contains(ref string) bool {
	_, ok := r.Lookup(ref)
	return ok
}

// All returns the doctors in roster order.
func (r *Roster) All() []Doctor {
	return append([]Doctor(nil), r.doctors...)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, title := range []string{"dr. ", "dr.", "dr "} {
		if strings.HasPrefix(s, title) {
			s = strings.TrimSpace(s[len(title):])
			break
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
