package roster

// Identity maps resolved roster members to their PUUIDs in both directions.
// It is built once per run by the resolver and handed to every later stage.
type Identity struct {
	order   []string
	byName  map[string]string
	byPUUID map[string]Member
}

func NewIdentity() *Identity {
	return &Identity{
		byName:  make(map[string]string),
		byPUUID: make(map[string]Member),
	}
}

// Add records a resolved member and reports whether it was kept. A member whose
// display name is already present is not added, whatever its tag. If two members
// resolve to the same PUUID the first one wins for reverse lookups.
func (id *Identity) Add(m Member, puuid string) bool {
	if _, ok := id.byName[m.Name]; ok {
		return false
	}
	id.byName[m.Name] = puuid
	if _, ok := id.byPUUID[puuid]; !ok {
		id.byPUUID[puuid] = m
		id.order = append(id.order, puuid)
	}
	return true
}

func (id *Identity) PUUIDFor(name string) (string, bool) {
	puuid, ok := id.byName[name]
	return puuid, ok
}

func (id *Identity) MemberFor(puuid string) (Member, bool) {
	m, ok := id.byPUUID[puuid]
	return m, ok
}

func (id *Identity) Contains(puuid string) bool {
	_, ok := id.byPUUID[puuid]
	return ok
}

// IsSubstitute reports whether puuid belongs to a roster member with the sub role.
func (id *Identity) IsSubstitute(puuid string) bool {
	m, ok := id.byPUUID[puuid]
	return ok && m.IsSubstitute()
}

// PUUIDs returns distinct resolved PUUIDs in roster order.
func (id *Identity) PUUIDs() []string {
	out := make([]string, len(id.order))
	copy(out, id.order)
	return out
}

func (id *Identity) Len() int {
	return len(id.order)
}
