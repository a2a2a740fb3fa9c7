package dbmanager

import (
	"context"
	"log"
	"net/url"
	"regexp"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connection holds the single live handle to the document store
type Connection struct {
	ConnectionString string
	Client           *mongo.Client
	EstablishedAt    time.Time
}

// ManagerOptions bounds the connection pool and its timeouts
type ManagerOptions struct {
	MaxPoolSize            uint64
	MinPoolSize            uint64
	MaxConnIdleTime        time.Duration
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	PingTimeout            time.Duration
}

// DefaultManagerOptions returns the default pool configuration
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		MaxPoolSize:            25,
		MinPoolSize:            5,
		MaxConnIdleTime:        time.Hour,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		PingTimeout:            5 * time.Second,
	}
}

// Manager owns the process-wide connection handle. Exactly one logical
// connection string is active at a time; handle replacement happens under the
// mutex so a concurrent connect cannot interleave with a close.
type Manager struct {
	mu   sync.Mutex
	conn *Connection
	opts ManagerOptions
}

// NewManager creates a connection manager
func NewManager(opts ManagerOptions) *Manager {
	if opts.MaxPoolSize == 0 {
		opts = DefaultManagerOptions()
	}
	return &Manager{opts: opts}
}

// Connect establishes a pooled connection to the store. Connecting with the
// string of the current handle returns it unchanged; a different string closes
// the old handle before opening the new one.
func (m *Manager) Connect(ctx context.Context, connectionString string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && m.conn.ConnectionString == connectionString {
		log.Printf("ConnectionManager -> Connect -> Reusing existing handle for %s", MaskConnectionString(connectionString))
		return m.conn, nil
	}

	if m.conn != nil {
		log.Printf("ConnectionManager -> Connect -> Replacing handle for %s", MaskConnectionString(m.conn.ConnectionString))
		m.closeLocked()
	}

	clientOptions := options.Client().
		ApplyURI(connectionString).
		SetMaxPoolSize(m.opts.MaxPoolSize).
		SetMinPoolSize(m.opts.MinPoolSize).
		SetMaxConnIdleTime(m.opts.MaxConnIdleTime).
		SetConnectTimeout(m.opts.ConnectTimeout).
		SetServerSelectionTimeout(m.opts.ServerSelectionTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		log.Printf("ConnectionManager -> Connect -> Error connecting: %v", err)
		return nil, NewConnectionError("failed to connect: %v", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		log.Printf("ConnectionManager -> Connect -> Error pinging: %v", err)
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), m.opts.ConnectTimeout)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, NewConnectionError("failed to reach the database: %v", err)
	}

	m.conn = &Connection{
		ConnectionString: connectionString,
		Client:           client,
		EstablishedAt:    time.Now(),
	}
	log.Printf("ConnectionManager -> Connect -> Connected to %s", MaskConnectionString(connectionString))
	return m.conn, nil
}

// Current returns the live handle, or NotConnectedError when there is none
func (m *Manager) Current() (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil, &NotConnectedError{}
	}
	return m.conn, nil
}

// Status probes the handle with an administrative ping. A failed probe closes
// and clears the stale handle before reporting disconnected, so a stale handle
// is never returned to a later caller.
func (m *Manager) Status(ctx context.Context) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return false, ""
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
	defer cancel()

	if err := m.conn.Client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Printf("ConnectionManager -> Status -> Ping failed, clearing stale handle: %v", err)
		m.closeLocked()
		return false, ""
	}

	return true, MaskConnectionString(m.conn.ConnectionString)
}

// Disconnect closes the handle if present. Calling it twice is a no-op.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}

	log.Printf("ConnectionManager -> Disconnect -> Closing handle for %s", MaskConnectionString(m.conn.ConnectionString))
	m.closeLocked()
	return nil
}

// closeLocked closes and clears the handle. Callers must hold m.mu.
func (m *Manager) closeLocked() {
	if m.conn == nil {
		return
	}

	disconnectCtx, cancel := context.WithTimeout(context.Background(), m.opts.ConnectTimeout)
	defer cancel()

	if err := m.conn.Client.Disconnect(disconnectCtx); err != nil {
		log.Printf("ConnectionManager -> closeLocked -> Error disconnecting: %v", err)
	}
	m.conn = nil
}

var passwordPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)

// MaskConnectionString hides the password portion of a connection string
func MaskConnectionString(connectionString string) string {
	u, err := url.Parse(connectionString)
	if err == nil && u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "********")
			return u.String()
		}
		return connectionString
	}
	return passwordPattern.ReplaceAllString(connectionString, "://$1:********@")
}
