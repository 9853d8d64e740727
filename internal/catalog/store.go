package catalog

// Store is the capability set every catalogue provider (file, relational)
// implements identically.
type Store interface {
	Databases() DatabaseRepository
	Queries() QueryRepository
	Endpoints() EndpointRepository
}

// DatabaseRepository is the CRUD + introspection surface over DatabaseSpec.
type DatabaseRepository interface {
	LoadAll() (map[string]DatabaseSpec, error)
	LoadByName(name string) (*DatabaseSpec, error)
	Upsert(spec DatabaseSpec) error
	Delete(name string) (bool, error)
	Exists(name string) (bool, error)
	Count() (int, error)
}

// QueryRepository is the CRUD + introspection surface over QuerySpec.
type QueryRepository interface {
	LoadAll() (map[string]QuerySpec, error)
	LoadByName(name string) (*QuerySpec, error)
	Upsert(spec QuerySpec) error
	Delete(name string) (bool, error)
	Exists(name string) (bool, error)
	Count() (int, error)
	// CountByParent and ByParent filter by the owning DatabaseSpec.Name.
	CountByParent(databaseName string) (int, error)
	ByParent(databaseName string) ([]QuerySpec, error)
}

// EndpointRepository is the CRUD + introspection surface over EndpointSpec.
type EndpointRepository interface {
	LoadAll() (map[string]EndpointSpec, error)
	LoadByName(name string) (*EndpointSpec, error)
	Upsert(spec EndpointSpec) error
	Delete(name string) (bool, error)
	Exists(name string) (bool, error)
	Count() (int, error)
	// CountByParent and ByParent filter by the owning QuerySpec.Name.
	CountByParent(queryName string) (int, error)
	ByParent(queryName string) ([]EndpointSpec, error)
}
