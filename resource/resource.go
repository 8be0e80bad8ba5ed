package resource

import "fmt"

// Type identifies the kind of backing resource a session holds.
type Type uint8

const (
	DBConnection Type = 1
	RedisClient  Type = 2
)

// Config describes how to reach a resource. Materialize does all of the
// setup, e.g. opening the ledger database and migrating its schema.
type Config interface {
	Materialize(scope Scope) (Resource, error)
}

type Resource interface {
	Close() error
	Type() Type
}

// Scope namespaces the names a resource creates (redis keys, job names) so
// that several projects can share one backing store.
type Scope struct {
	project string
}

func NewScope(project string) Scope {
	return Scope{project: project}
}

func (s Scope) Project() string {
	return s.project
}

func (s Scope) PrefixedName(name string) string {
	if s.project == "" {
		return name
	}
	return fmt.Sprintf("%s:%s", s.project, name)
}
