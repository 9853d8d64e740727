package catalog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"sqlgateway/internal/logger"
)

// fileSnapshot is the immutable copy-on-write view of the three catalogues.
// Readers hold a reference to one snapshot for the lifetime of a request;
// writers build a new snapshot and atomically swap it in.
type fileSnapshot struct {
	databases map[string]DatabaseSpec
	queries   map[string]QuerySpec
	endpoints map[string]EndpointSpec
}

func cloneSnapshot(s *fileSnapshot) *fileSnapshot {
	out := &fileSnapshot{
		databases: make(map[string]DatabaseSpec, len(s.databases)),
		queries:   make(map[string]QuerySpec, len(s.queries)),
		endpoints: make(map[string]EndpointSpec, len(s.endpoints)),
	}
	for k, v := range s.databases {
		out.databases[k] = v
	}
	for k, v := range s.queries {
		out.queries[k] = v
	}
	for k, v := range s.endpoints {
		out.endpoints[k] = v
	}
	return out
}

// FileStore is the file-backed CatalogueStore provider. It loads three YAML
// documents at construction and keeps them in memory; writes are journalled
// back to the originating document.
type FileStore struct {
	snap atomic.Pointer[fileSnapshot]

	// writeMu serializes the read-modify-write cycle writers perform; it
	// never blocks readers, which only ever dereference snap.
	writeMu sync.Mutex

	databasesPath string
	queriesPath   string
	endpointsPath string
}

// NewFileStore loads databases.yaml, queries.yaml and endpoints.yaml from
// the given paths. A missing file is treated as an empty catalogue, not an
// error, so a fresh deployment can start from nothing and populate via the
// admin CRUD surface.
func NewFileStore(databasesPath, queriesPath, endpointsPath string) (*FileStore, error) {
	fs := &FileStore{
		databasesPath: databasesPath,
		queriesPath:   queriesPath,
		endpointsPath: endpointsPath,
	}

	databases, err := loadYAMLMap[DatabaseSpec](databasesPath)
	if err != nil {
		return nil, IOErr(fmt.Errorf("loading %s: %w", databasesPath, err))
	}
	queries, err := loadYAMLMap[QuerySpec](queriesPath)
	if err != nil {
		return nil, IOErr(fmt.Errorf("loading %s: %w", queriesPath, err))
	}
	endpoints, err := loadYAMLMap[EndpointSpec](endpointsPath)
	if err != nil {
		return nil, IOErr(fmt.Errorf("loading %s: %w", endpointsPath, err))
	}

	for name, d := range databases {
		d.Pool = d.Pool.WithDefaults()
		databases[name] = d
	}

	fs.snap.Store(&fileSnapshot{databases: databases, queries: queries, endpoints: endpoints})
	logger.WithComponent("catalog").Info("file catalogue loaded",
		"databases", len(databases), "queries", len(queries), "endpoints", len(endpoints))
	return fs, nil
}

func loadYAMLMap[T any](path string) (map[string]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]T{}, nil
		}
		return nil, err
	}
	doc := map[string]T{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (fs *FileStore) snapshot() *fileSnapshot { return fs.snap.Load() }

func (fs *FileStore) Databases() DatabaseRepository { return fileDatabaseRepo{fs} }
func (fs *FileStore) Queries() QueryRepository       { return fileQueryRepo{fs} }
func (fs *FileStore) Endpoints() EndpointRepository   { return fileEndpointRepo{fs} }

// --- databases ---

type fileDatabaseRepo struct{ fs *FileStore }

func (r fileDatabaseRepo) LoadAll() (map[string]DatabaseSpec, error) {
	snap := r.fs.snapshot()
	out := make(map[string]DatabaseSpec, len(snap.databases))
	for k, v := range snap.databases {
		out[k] = v
	}
	return out, nil
}

func (r fileDatabaseRepo) LoadByName(name string) (*DatabaseSpec, error) {
	snap := r.fs.snapshot()
	d, ok := snap.databases[name]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r fileDatabaseRepo) Upsert(spec DatabaseSpec) error {
	if spec.Name == "" {
		return InvalidErr(fmt.Errorf("database name is required"))
	}
	spec.Pool = spec.Pool.WithDefaults()

	r.fs.writeMu.Lock()
	defer r.fs.writeMu.Unlock()
	next := cloneSnapshot(r.fs.snapshot())
	next.databases[spec.Name] = spec
	r.fs.snap.Store(next)
	return r.fs.persist(r.fs.databasesPath, next.databases)
}

func (r fileDatabaseRepo) Delete(name string) (bool, error) {
	r.fs.writeMu.Lock()
	defer r.fs.writeMu.Unlock()
	cur := r.fs.snapshot()
	if _, ok := cur.databases[name]; !ok {
		return false, nil
	}
	next := cloneSnapshot(cur)
	delete(next.databases, name)
	r.fs.snap.Store(next)
	return true, r.fs.persist(r.fs.databasesPath, next.databases)
}

func (r fileDatabaseRepo) Exists(name string) (bool, error) {
	_, ok := r.fs.snapshot().databases[name]
	return ok, nil
}

func (r fileDatabaseRepo) Count() (int, error) {
	return len(r.fs.snapshot().databases), nil
}

// --- queries ---

type fileQueryRepo struct{ fs *FileStore }

func (r fileQueryRepo) LoadAll() (map[string]QuerySpec, error) {
	snap := r.fs.snapshot()
	out := make(map[string]QuerySpec, len(snap.queries))
	for k, v := range snap.queries {
		out[k] = v
	}
	return out, nil
}

func (r fileQueryRepo) LoadByName(name string) (*QuerySpec, error) {
	snap := r.fs.snapshot()
	q, ok := snap.queries[name]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (r fileQueryRepo) Upsert(spec QuerySpec) error {
	if spec.Name == "" {
		return InvalidErr(fmt.Errorf("query name is required"))
	}
	r.fs.writeMu.Lock()
	defer r.fs.writeMu.Unlock()
	next := cloneSnapshot(r.fs.snapshot())
	next.queries[spec.Name] = spec
	r.fs.snap.Store(next)
	return r.fs.persist(r.fs.queriesPath, next.queries)
}

func (r fileQueryRepo) Delete(name string) (bool, error) {
	r.fs.writeMu.Lock()
	defer r.fs.writeMu.Unlock()
	cur := r.fs.snapshot()
	if _, ok := cur.queries[name]; !ok {
		return false, nil
	}
	next := cloneSnapshot(cur)
	delete(next.queries, name)
	r.fs.snap.Store(next)
	return true, r.fs.persist(r.fs.queriesPath, next.queries)
}

func (r fileQueryRepo) Exists(name string) (bool, error) {
	_, ok := r.fs.snapshot().queries[name]
	return ok, nil
}

func (r fileQueryRepo) Count() (int, error) {
	return len(r.fs.snapshot().queries), nil
}

func (r fileQueryRepo) CountByParent(databaseName string) (int, error) {
	n := 0
	for _, q := range r.fs.snapshot().queries {
		if q.DatabaseName == databaseName {
			n++
		}
	}
	return n, nil
}

func (r fileQueryRepo) ByParent(databaseName string) ([]QuerySpec, error) {
	var out []QuerySpec
	for _, q := range r.fs.snapshot().queries {
		if q.DatabaseName == databaseName {
			out = append(out, q)
		}
	}
	return out, nil
}

// --- endpoints ---

type fileEndpointRepo struct{ fs *FileStore }

func (r fileEndpointRepo) LoadAll() (map[string]EndpointSpec, error) {
	snap := r.fs.snapshot()
	out := make(map[string]EndpointSpec, len(snap.endpoints))
	for k, v := range snap.endpoints {
		out[k] = v
	}
	return out, nil
}

func (r fileEndpointRepo) LoadByName(name string) (*EndpointSpec, error) {
	snap := r.fs.snapshot()
	e, ok := snap.endpoints[name]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r fileEndpointRepo) Upsert(spec EndpointSpec) error {
	if spec.Name == "" {
		return InvalidErr(fmt.Errorf("endpoint name is required"))
	}
	r.fs.writeMu.Lock()
	defer r.fs.writeMu.Unlock()
	cur := r.fs.snapshot()
	for name, e := range cur.endpoints {
		if name != spec.Name && e.Method == spec.Method && e.Path == spec.Path {
			return ConflictErr(fmt.Errorf("endpoint %s already registers %s %s", name, spec.Method, spec.Path))
		}
	}
	next := cloneSnapshot(cur)
	next.endpoints[spec.Name] = spec
	r.fs.snap.Store(next)
	return r.fs.persist(r.fs.endpointsPath, next.endpoints)
}

func (r fileEndpointRepo) Delete(name string) (bool, error) {
	r.fs.writeMu.Lock()
	defer r.fs.writeMu.Unlock()
	cur := r.fs.snapshot()
	if _, ok := cur.endpoints[name]; !ok {
		return false, nil
	}
	next := cloneSnapshot(cur)
	delete(next.endpoints, name)
	r.fs.snap.Store(next)
	return true, r.fs.persist(r.fs.endpointsPath, next.endpoints)
}

func (r fileEndpointRepo) Exists(name string) (bool, error) {
	_, ok := r.fs.snapshot().endpoints[name]
	return ok, nil
}

func (r fileEndpointRepo) Count() (int, error) {
	return len(r.fs.snapshot().endpoints), nil
}

func (r fileEndpointRepo) CountByParent(queryName string) (int, error) {
	n := 0
	for _, e := range r.fs.snapshot().endpoints {
		if e.QueryName == queryName {
			n++
		}
	}
	return n, nil
}

func (r fileEndpointRepo) ByParent(queryName string) ([]EndpointSpec, error) {
	var out []EndpointSpec
	for _, e := range r.fs.snapshot().endpoints {
		if e.QueryName == queryName {
			out = append(out, e)
		}
	}
	return out, nil
}

// persist journals the given map back to its YAML document so a restart
// sees admin writes.
func (fs *FileStore) persist(path string, data any) error {
	if path == "" {
		return nil
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		return IOErr(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return IOErr(err)
	}
	return nil
}
