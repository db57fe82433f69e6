package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/sphinxql/pkg/observability"
)

// ConnectionManager manages searchd connections: one primary for writes and
// maintenance statements, and any number of replicas (agent mirrors) for reads.
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*replica // in rotation
	offline  []*replica // pruned or never reached, retried by the monitor
	current  uint32     // round-robin counter
	mu       sync.RWMutex
	config   ConnectionConfig
	logger   *logrus.Logger
	metrics  *observability.Metrics
	dial     func(addr string) (*sql.DB, error)

	monitor *cron.Cron
}

// replica is a read connection. addr is empty for handles passed to
// NewConnectionManagerFromDB, and db is nil until addr has been reached once.
type replica struct {
	addr string
	db   *sql.DB
}

// ConnectionConfig holds searchd connection configuration
type ConnectionConfig struct {
	PrimaryAddr  string
	ReplicaAddrs []string
	User         string
	Password     string
	MaxConns     int
	MinConns     int
	Timeout      time.Duration
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
}

// DSN returns a go-sql-driver/mysql DSN for addr. SphinxQL has no database
// name, and statements are sent as plain text with client-side interpolation.
func (c ConnectionConfig) DSN(addr string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.InterpolateParams = true
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
		cfg.ReadTimeout = c.Timeout
		cfg.WriteTimeout = c.Timeout
	}
	return cfg.FormatDSN()
}

// NewConnectionManager opens the primary and every replica. A replica that
// cannot be reached is logged and skipped; the primary is required.
func NewConnectionManager(config ConnectionConfig, logger *logrus.Logger) (*ConnectionManager, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.PrimaryAddr == "" {
		return nil, errors.New("primary address is required")
	}

	cm := &ConnectionManager{
		config:   config,
		logger:   logger,
		replicas: make([]*replica, 0, len(config.ReplicaAddrs)),
	}
	cm.dial = cm.openReplica

	primary, err := cm.open(config.PrimaryAddr, config.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary: %w", err)
	}
	cm.primary = primary

	for i, addr := range config.ReplicaAddrs {
		if err := cm.AddReplica(addr); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"replica": i,
				"addr":    addr,
			}).Warn("Replica unreachable, will retry")
		}
	}

	logger.WithFields(logrus.Fields{
		"primary":  config.PrimaryAddr,
		"replicas": len(cm.replicas),
		"offline":  len(cm.offline),
	}).Info("Connection manager initialized")

	return cm, nil
}

// NewConnectionManagerFromDB wraps already opened handles
func NewConnectionManagerFromDB(primary *sql.DB, replicas ...*sql.DB) *ConnectionManager {
	cm := &ConnectionManager{
		primary: primary,
		logger:  logrus.StandardLogger(),
	}
	cm.dial = cm.openReplica
	for _, db := range replicas {
		cm.replicas = append(cm.replicas, &replica{db: db})
	}
	return cm
}

// AddReplica opens addr and puts it in rotation. When addr cannot be reached
// it is kept offline and the health monitor keeps retrying it.
func (cm *ConnectionManager) AddReplica(addr string) error {
	db, err := cm.dial(addr)

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if err != nil {
		cm.offline = append(cm.offline, &replica{addr: addr})
		return fmt.Errorf("failed to connect to replica %s: %w", addr, err)
	}
	cm.replicas = append(cm.replicas, &replica{addr: addr, db: db})
	return nil
}

func (cm *ConnectionManager) openReplica(addr string) (*sql.DB, error) {
	return cm.open(addr, replicaPoolSize(cm.config.MaxConns))
}

func (cm *ConnectionManager) open(addr string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("mysql", cm.config.DSN(addr))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(cm.config.MinConns)
	db.SetConnMaxLifetime(cm.config.MaxLifetime)
	db.SetConnMaxIdleTime(cm.config.MaxIdleTime)

	timeout := cm.config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// replicas get half the primary's pool, never fewer than two
func replicaPoolSize(maxConns int) int {
	n := maxConns / 2
	if n < 2 {
		n = 2
	}
	return n
}

// Primary returns the primary connection
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns a replica using round-robin selection, or the primary
// when no replica is in rotation.
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}

	index := atomic.AddUint32(&cm.current, 1)
	return cm.replicas[int(index%uint32(len(cm.replicas)))].db
}

// ReplicaCount returns the number of replicas in rotation
func (cm *ConnectionManager) ReplicaCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.replicas)
}

// OfflineCount returns the number of replicas waiting to be restored
func (cm *ConnectionManager) OfflineCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.offline)
}

func (cm *ConnectionManager) snapshot(list *[]*replica) []*replica {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return append([]*replica(nil), (*list)...)
}

func without(list []*replica, drop map[*replica]bool) []*replica {
	kept := make([]*replica, 0, len(list))
	for _, r := range list {
		if !drop[r] {
			kept = append(kept, r)
		}
	}
	return kept
}

// HealthCheck pings the primary and all replicas. It fails when the primary
// is down or when every replica is down.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	replicas := cm.snapshot(&cm.replicas)

	var unhealthy []string
	for i, r := range replicas {
		if err := r.db.PingContext(ctx); err != nil {
			unhealthy = append(unhealthy, fmt.Sprintf("replica-%d", i))
		}
	}

	if len(unhealthy) > 0 && len(unhealthy) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// RemoveUnhealthyReplicas takes replicas that fail a ping out of rotation,
// returning how many were removed. Their pools stay open so RestoreReplicas
// can bring them back.
func (cm *ConnectionManager) RemoveUnhealthyReplicas(ctx context.Context) int {
	failed := map[*replica]bool{}
	for _, r := range cm.snapshot(&cm.replicas) {
		if err := r.db.PingContext(ctx); err != nil {
			failed[r] = true
		}
	}
	if len(failed) == 0 {
		return 0
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	removed := 0
	for _, r := range cm.replicas {
		if failed[r] {
			cm.offline = append(cm.offline, r)
			removed++
		}
	}
	cm.replicas = without(cm.replicas, failed)
	return removed
}

// RestoreReplicas reconnects offline replicas and returns the ones that
// answer a ping to rotation. It returns how many were restored.
func (cm *ConnectionManager) RestoreReplicas(ctx context.Context) int {
	recovered := map[*replica]*sql.DB{}
	for _, r := range cm.snapshot(&cm.offline) {
		db := r.db
		if db == nil {
			var err error
			if db, err = cm.dial(r.addr); err != nil {
				continue
			}
		} else if err := db.PingContext(ctx); err != nil {
			continue
		}
		recovered[r] = db
	}
	if len(recovered) == 0 {
		return 0
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	back := map[*replica]bool{}
	for _, r := range cm.offline {
		if db, ok := recovered[r]; ok {
			r.db = db
			cm.replicas = append(cm.replicas, r)
			back[r] = true
		}
	}
	cm.offline = without(cm.offline, back)
	return len(back)
}

// SetMetrics makes every health monitor tick publish pool statistics
func (cm *ConnectionManager) SetMetrics(metrics *observability.Metrics) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.metrics = metrics
}

// StartHealthMonitor restores recovered replicas and prunes failing ones on
// a cron schedule such as "@every 30s". An empty schedule means every 30 seconds.
func (cm *ConnectionManager) StartHealthMonitor(schedule string) error {
	if schedule == "" {
		schedule = "@every 30s"
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.monitor != nil {
		return errors.New("health monitor already running")
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(cm.logger))))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if restored := cm.RestoreReplicas(ctx); restored > 0 {
			cm.logger.WithFields(logrus.Fields{
				"restored": restored,
				"replicas": cm.ReplicaCount(),
			}).Info("Restored replicas")
		}
		if removed := cm.RemoveUnhealthyReplicas(ctx); removed > 0 {
			cm.logger.WithFields(logrus.Fields{
				"removed":   removed,
				"remaining": cm.ReplicaCount(),
			}).Warn("Removed unhealthy replicas")
		}

		cm.mu.RLock()
		metrics := cm.metrics
		cm.mu.RUnlock()
		metrics.UpdatePoolStats(cm.primary.Stats(), cm.ReplicaCount())
	})
	if err != nil {
		return fmt.Errorf("invalid health check schedule %q: %w", schedule, err)
	}

	c.Start()
	cm.monitor = c
	return nil
}

// Stop stops the health monitor and waits for a running check to finish
func (cm *ConnectionManager) Stop() {
	cm.mu.Lock()
	c := cm.monitor
	cm.monitor = nil
	cm.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// ConnectionStats holds pool statistics for primary and replicas
type ConnectionStats struct {
	Primary  sql.DBStats
	Replicas []sql.DBStats
}

// Stats returns pool statistics for every connection
func (cm *ConnectionManager) Stats() ConnectionStats {
	stats := ConnectionStats{
		Primary: cm.primary.Stats(),
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats.Replicas = make([]sql.DBStats, len(cm.replicas))
	for i, r := range cm.replicas {
		stats.Replicas[i] = r.db.Stats()
	}
	return stats
}

// Close stops the monitor and closes every connection
func (cm *ConnectionManager) Close() error {
	cm.Stop()

	var errs []error
	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}

	cm.mu.Lock()
	replicas := append(cm.replicas, cm.offline...)
	cm.replicas, cm.offline = nil, nil
	cm.mu.Unlock()

	for i, r := range replicas {
		if r.db == nil {
			continue
		}
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d close error: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// ParseReplicaAddrs splits a comma-separated address list, dropping blanks
func ParseReplicaAddrs(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
