// Package catalog holds the three configuration catalogues — databases,
// queries and endpoints — that parameterize the gateway, and the two
// interchangeable store providers (file, relational) that persist them.
package catalog

// ParamType enumerates the coercion targets a QueryParamSpec can declare.
type ParamType string

const (
	ParamString    ParamType = "STRING"
	ParamInteger   ParamType = "INTEGER"
	ParamLong      ParamType = "LONG"
	ParamDecimal   ParamType = "DECIMAL"
	ParamBoolean   ParamType = "BOOLEAN"
	ParamTimestamp ParamType = "TIMESTAMP"
)

// QueryType enumerates the two statement shapes a QuerySpec can declare.
type QueryType string

const (
	QuerySelect QueryType = "SELECT"
	QueryUpdate QueryType = "UPDATE"
)

// PoolSpec describes the pooled-connection tuning parameters for a
// DatabaseSpec. Zero values are replaced with the documented defaults by
// WithDefaults.
type PoolSpec struct {
	MaximumPoolSize          int `yaml:"maximumPoolSize" json:"maximumPoolSize"`
	MinimumIdle              int `yaml:"minimumIdle" json:"minimumIdle"`
	ConnectionTimeoutMs      int `yaml:"connectionTimeoutMs" json:"connectionTimeoutMs"`
	IdleTimeoutMs            int `yaml:"idleTimeoutMs" json:"idleTimeoutMs"`
	MaxLifetimeMs            int `yaml:"maxLifetimeMs" json:"maxLifetimeMs"`
	LeakDetectionThresholdMs int `yaml:"leakDetectionThresholdMs" json:"leakDetectionThresholdMs"`
	ConnectionTestQuery      string `yaml:"connectionTestQuery" json:"connectionTestQuery"`
}

// WithDefaults returns a copy of p with the documented defaults applied
// to any zero-valued field.
func (p PoolSpec) WithDefaults() PoolSpec {
	if p.MaximumPoolSize == 0 {
		p.MaximumPoolSize = 10
	}
	if p.MinimumIdle == 0 {
		p.MinimumIdle = 2
	}
	if p.ConnectionTimeoutMs == 0 {
		p.ConnectionTimeoutMs = 30000
	}
	if p.IdleTimeoutMs == 0 {
		p.IdleTimeoutMs = 600000
	}
	if p.MaxLifetimeMs == 0 {
		p.MaxLifetimeMs = 1800000
	}
	if p.LeakDetectionThresholdMs == 0 {
		p.LeakDetectionThresholdMs = 60000
	}
	if p.ConnectionTestQuery == "" {
		p.ConnectionTestQuery = "SELECT 1"
	}
	return p
}

// DatabaseSpec describes one pooled data source the gateway can dispatch
// queries against.
type DatabaseSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	URL         string   `yaml:"url" json:"url"`
	Username    string   `yaml:"username" json:"username"`
	Password    string   `yaml:"password" json:"password,omitempty"`
	DriverID    string   `yaml:"driverId" json:"driverId"`
	Pool        PoolSpec `yaml:"pool" json:"pool"`
}

// QueryParamSpec describes one positional bind parameter of a QuerySpec.
type QueryParamSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Type     ParamType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Position int       `yaml:"position" json:"position"`
}

// QuerySpec describes one parameterised SQL statement.
type QuerySpec struct {
	Name           string           `yaml:"name" json:"name"`
	Description    string           `yaml:"description" json:"description"`
	DatabaseName   string           `yaml:"databaseName" json:"databaseName"`
	SQL            string           `yaml:"sql" json:"sql"`
	Parameters     []QueryParamSpec `yaml:"parameters" json:"parameters"`
	QueryType      QueryType        `yaml:"queryType" json:"queryType"`
	TimeoutSeconds int              `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

// PaginationSpec describes an endpoint's optional paging behavior.
type PaginationSpec struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	DefaultSize int  `yaml:"defaultSize" json:"defaultSize"`
	MaxSize     int  `yaml:"maxSize" json:"maxSize"`
}

// EndpointSpec describes one synthesized REST route.
type EndpointSpec struct {
	Name           string          `yaml:"name" json:"name"`
	Path           string          `yaml:"path" json:"path"`
	Method         string          `yaml:"method" json:"method"`
	QueryName      string          `yaml:"queryName" json:"queryName"`
	Description    string          `yaml:"description" json:"description"`
	CountQueryName string          `yaml:"countQueryName,omitempty" json:"countQueryName,omitempty"`
	Pagination     *PaginationSpec `yaml:"pagination,omitempty" json:"pagination,omitempty"`

	// Stored verbatim and exposed by the admin surface but never honoured by
	// the core dispatch path.
	ResponseFormat      string `yaml:"responseFormat,omitempty" json:"responseFormat,omitempty"`
	CacheEnabled        bool   `yaml:"cacheEnabled,omitempty" json:"cacheEnabled,omitempty"`
	CacheTTLSeconds     int    `yaml:"cacheTtlSeconds,omitempty" json:"cacheTtlSeconds,omitempty"`
	RateLimitEnabled    bool   `yaml:"rateLimitEnabled,omitempty" json:"rateLimitEnabled,omitempty"`
	RateLimitRequests   int    `yaml:"rateLimitRequests,omitempty" json:"rateLimitRequests,omitempty"`
	RateLimitWindowSecs int    `yaml:"rateLimitWindowSeconds,omitempty" json:"rateLimitWindowSeconds,omitempty"`
}

// Kind identifies one of the three catalogue mappings. Store exposes a
// separate repository per entity type; store operations do not take a Kind.
type Kind string

const (
	KindDatabase Kind = "databases"
	KindQuery    Kind = "queries"
	KindEndpoint Kind = "endpoints"
)
