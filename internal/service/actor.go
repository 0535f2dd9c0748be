package service

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID       uint
	IsStaff      bool
	IsManagement bool
}

// Privileged callers see every membership and full sensitive values.
func (a Actor) Privileged() bool {
	return a.IsStaff || a.IsManagement
}

func (a Actor) id() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// SystemActor performs transitions driven by the provider or the scheduler.
var SystemActor = Actor{}
