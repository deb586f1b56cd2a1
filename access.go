package recql

// StaticAccess is an Access backed by fixed per-type grants.
type StaticAccess struct {
	User    string
	read    map[string]bool
	readAll map[string]bool
}

// NewStaticAccess creates an identity with no grants.
func NewStaticAccess(user string) *StaticAccess {
	return &StaticAccess{
		User:    user,
		read:    make(map[string]bool),
		readAll: make(map[string]bool),
	}
}

// GrantRead allows reading records of the given types that are shared with the user.
func (a *StaticAccess) GrantRead(typeIDs ...string) *StaticAccess {
	for _, id := range typeIDs {
		a.read[id] = true
	}
	return a
}

// GrantReadAll allows reading every record of the given types.
func (a *StaticAccess) GrantReadAll(typeIDs ...string) *StaticAccess {
	for _, id := range typeIDs {
		a.readAll[id] = true
	}
	return a
}

// UserID implements Access.
func (a *StaticAccess) UserID() string { return a.User }

// CanReadType implements Access.
func (a *StaticAccess) CanReadType(typeID string) bool {
	return a.read[typeID] || a.readAll[typeID]
}

// CanReadAllType implements Access.
func (a *StaticAccess) CanReadAllType(typeID string) bool {
	return a.readAll[typeID]
}
