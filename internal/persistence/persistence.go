package persistence

// Persistence bundles the store interfaces so the engine
// can depend on a single abstraction.
type Persistence struct {
	Subjects SubjectStore
	Events   EventStore
}
