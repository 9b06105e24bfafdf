// Package runledger records bridge sessions and stream publications in a ClickHouse
// database, so that recorded data can later be matched with its channel montage.
package runledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/usnistgov/bcibridge/internal/unboundedchan"
)

// Connection is a (possibly absent) connection to the ledger database. All methods are
// safe to call on a connection that never connected: records are then discarded.
type Connection struct {
	conn    clickhouse.Conn
	err     error
	session *SessionMessage
	logger  *log.Logger
	sync.WaitGroup

	// Publications wait in pubmsg until inserted; store performs the insert.
	pubmsg    *unboundedchan.UnboundedChannel[*PublicationMessage]
	store     func(*PublicationMessage)
	queueLock sync.Mutex
	queueShut bool
}

const databaseName = "bcibridge" // official SQL name of the database

// Environment variables holding the database credentials.
const (
	UserEnv     = "BCIBRIDGE_DB_USER"
	PasswordEnv = "BCIBRIDGE_DB_PASSWORD"
)

// ErrNotConnected means the ledger database could not be reached.
var ErrNotConnected = errors.New("ledger database is not connected")

// IsConnected is true when records will actually be stored.
func (db *Connection) IsConnected() bool {
	return (db != nil) && (db.conn != nil) && (db.err == nil)
}

// Err is the error that disconnected the ledger, if any.
func (db *Connection) Err() error {
	if db == nil {
		return ErrNotConnected
	}
	return db.err
}

// PingServer checks that a ClickHouse server answers at addr and writes its version to w.
func PingServer(addr string, w io.Writer) error {
	db := createConnection(addr, log.Default())
	if !db.IsConnected() {
		return fmt.Errorf("%w: %w", ErrNotConnected, db.err)
	}
	defer db.conn.Close()
	v, err := db.conn.ServerVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ClickHouse server is alive. Version:\n%s\n", v)
	return nil
}

// Start connects to the server at addr and records the start of session. The
// connection handles records until abort is closed, when it records the session's end.
// Failure to connect is logged and leaves a connection that discards everything.
func Start(addr string, session *SessionMessage, logger *log.Logger, abort <-chan struct{}) *Connection {
	db := createConnection(addr, logger)
	db.session = session
	if !db.IsConnected() {
		logger.Printf("Run ledger unavailable at %s: %v\n", addr, db.err)
		return db
	}
	db.logSession()
	db.startQueue(db.handlePublication)
	db.Add(1)
	go db.handleConnection(abort)
	return db
}

// Dummy returns a connection that accepts and discards all records.
func Dummy() *Connection {
	return &Connection{err: ErrNotConnected, logger: log.New(os.Stderr, "", log.LstdFlags)}
}

func createConnection(addr string, logger *log.Logger) *Connection {
	db := &Connection{logger: logger}
	opt := clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: databaseName,
			Username: os.Getenv(UserEnv),
			Password: os.Getenv(PasswordEnv),
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "bcibridge", Version: "unknown"},
			},
		},
		DialTimeout: 2 * time.Second,
	}
	conn, err := clickhouse.Open(&opt)
	if err != nil {
		db.err = err
		return db
	}
	db.conn = conn

	if err = conn.Ping(context.Background()); err != nil {
		var exception *clickhouse.Exception
		if errors.As(err, &exception) {
			logger.Printf("Exception [%d] %s \n%s\n", exception.Code, exception.Message, exception.StackTrace)
		}
		conn.Close()
		db.err = err
		return db
	}
	return db
}

func (db *Connection) startQueue(store func(*PublicationMessage)) {
	db.pubmsg = unboundedchan.NewUnboundedChannel[*PublicationMessage]()
	db.store = store
}

// closeQueue refuses further records.
func (db *Connection) closeQueue() {
	db.queueLock.Lock()
	defer db.queueLock.Unlock()
	if db.pubmsg == nil || db.queueShut {
		return
	}
	db.queueShut = true
	db.pubmsg.Close()
}

func (db *Connection) logSession() {
	if !db.IsConnected() {
		return
	}
	const nowait = false
	s := db.session
	if err := db.conn.AsyncInsert(context.Background(),
		`INSERT INTO bridgesessions VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		s.ID, s.Hostname, s.Githash, s.Version, s.GoVersion, s.CPUs, s.Device,
		formatTime(s.Start), formatTime(s.End),
	); err != nil {
		db.logger.Println("Error raised on AsyncInsert into bridgesessions ", err)
		db.err = err
	}
}

func (db *Connection) handleConnection(abort <-chan struct{}) {
	defer db.Done()
	for {
		select {
		case <-abort:
			// Store whatever was recorded before the abort, in order.
			db.closeQueue()
			for msg := range db.pubmsg.Out() {
				db.store(msg)
			}
			db.disconnect()
			return
		case msg := <-db.pubmsg.Out():
			db.store(msg)
		}
	}
}

func (db *Connection) disconnect() {
	if db.IsConnected() {
		db.session.End = time.Now()
		db.logSession()
		db.conn.Close()
	}
}

// RecordPublication queues msg for the ledger (if it's open). It does not wait for the
// insert. Records are stored in the order given; after the abort they are discarded.
func (db *Connection) RecordPublication(msg *PublicationMessage) {
	if db == nil || msg == nil {
		return
	}
	db.queueLock.Lock()
	defer db.queueLock.Unlock()
	if db.pubmsg == nil || db.queueShut {
		return
	}
	db.pubmsg.In() <- msg
}

func (db *Connection) handlePublication(m *PublicationMessage) {
	if !db.IsConnected() {
		return
	}
	const nowait = false
	if err := db.conn.AsyncInsert(context.Background(),
		`INSERT INTO publications VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		m.SourceID, db.session.ID, m.Name, m.StreamType, m.labelList(),
		m.Nchannels, m.SampleRate, formatTime(m.Published),
	); err != nil {
		db.logger.Println("Error raised on AsyncInsert into publications ", err)
		db.err = err
	}
}
