package store

import (
	"sync"
)

// DBStats describes one database.
type DBStats struct {
	Name          string `json:"name"`
	Entries       int    `json:"entries"`
	Depth         int    `json:"depth"`
	BranchPages   int    `json:"branch_pages"`
	LeafPages     int    `json:"leaf_pages"`
	OverflowPages int    `json:"overflow_pages"`
	PageSize      int    `json:"page_size"`
}

// Pages returns the total number of pages the database occupies.
func (s DBStats) Pages() int {
	return s.BranchPages + s.LeafPages + s.OverflowPages
}

// Bytes returns the on-disk footprint of the database's pages.
func (s DBStats) Bytes() int64 {
	return int64(s.Pages()) * int64(s.PageSize)
}

// EnvStats describes an environment.
type EnvStats struct {
	Path         string `json:"path"`
	Mode         string `json:"mode"`
	PageSize     int    `json:"page_size"`
	MapSize      int    `json:"map_size"`
	MaxDatabases int    `json:"max_databases"`
	Databases    int    `json:"databases"`
	DataSize     int64  `json:"data_size"`
	LastTxID     int    `json:"last_tx_id"`
	OpenReaders  int    `json:"open_readers"`
	FreePages    int    `json:"free_pages"`
	PendingPages int    `json:"pending_pages"`
	WriteActive  bool   `json:"write_active"`
}

// Stats computes statistics for db as of this snapshot.
//
// Errors:
//   - NOT_FOUND: db does not exist
func (r *ReadTx) Stats(db string) (DBStats, error) {
	if _, err := r.reader("stats"); err != nil {
		return DBStats{}, err
	}
	name := bucketName(db)
	b := r.tx.Bucket(name)
	if b == nil {
		return DBStats{}, errNoDatabase("stats", db)
	}
	bs := b.Stats()
	return DBStats{
		Name:          displayName(name),
		Entries:       bs.KeyN,
		Depth:         bs.Depth,
		BranchPages:   bs.BranchPageN,
		LeafPages:     bs.LeafPageN,
		OverflowPages: bs.BranchOverflowN + bs.LeafOverflowN,
		PageSize:      r.env.db.Info().PageSize,
	}, nil
}

// EnvStats computes environment statistics as of this snapshot.
func (r *ReadTx) EnvStats() (EnvStats, error) {
	tr, err := r.reader("env stats")
	if err != nil {
		return EnvStats{}, err
	}
	e := r.env
	dbs := e.db.Stats()

	e.mu.Lock()
	readers := e.readers
	writing := e.write != nil
	e.mu.Unlock()

	return EnvStats{
		Path:         e.path,
		Mode:         e.mode.String(),
		PageSize:     e.db.Info().PageSize,
		MapSize:      e.opts.MapSize,
		MaxDatabases: e.opts.MaxDatabases,
		Databases:    tr.countDatabases(),
		DataSize:     r.tx.Size(),
		LastTxID:     r.tx.ID(),
		OpenReaders:  readers,
		FreePages:    dbs.FreePageN,
		PendingPages: dbs.PendingPageN,
		WriteActive:  writing,
	}, nil
}

// DatabaseStats returns statistics for db as of the last commit.
// Results are cached until a commit touches db.
func (e *Environment) DatabaseStats(db string) (DBStats, error) {
	name := displayName(bucketName(db))
	if s, ok := e.stats.get(name); ok {
		return s, nil
	}
	gen := e.stats.generation()

	r, err := e.BeginRead()
	if err != nil {
		return DBStats{}, err
	}
	defer r.Close()

	s, err := r.Stats(db)
	if err != nil {
		return DBStats{}, err
	}
	e.stats.put(name, s, gen)
	return s, nil
}

// Stats returns environment statistics as of the last commit.
func (e *Environment) Stats() (EnvStats, error) {
	r, err := e.BeginRead()
	if err != nil {
		return EnvStats{}, err
	}
	defer r.Close()
	s, err := r.EnvStats()
	if err != nil {
		return EnvStats{}, err
	}
	// The snapshot itself is an open reader; report the others.
	s.OpenReaders--
	return s, nil
}

// statsCache memoizes DBStats per database between commits.
type statsCache struct {
	mu      sync.Mutex
	entries map[string]DBStats
	gen     uint64
}

func (c *statsCache) init() {
	c.entries = make(map[string]DBStats)
}

func (c *statsCache) get(name string) (DBStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[name]
	return s, ok
}

func (c *statsCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// put stores s unless a commit invalidated the cache after gen was read.
func (c *statsCache) put(name string, s DBStats, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries[name] = s
}

func (c *statsCache) invalidate(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, n := range names {
		delete(c.entries, n)
	}
}

// Cached reports whether stats for db are currently cached.
func (e *Environment) Cached(db string) bool {
	_, ok := e.stats.get(displayName(bucketName(db)))
	return ok
}
