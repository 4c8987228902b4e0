// Package server exposes the JSON API, the admin surface and the two
// websocket channels: the live leaderboard feed and the server-driven play
// channel.
package server

import (
	"github.com/jonboulle/clockwork"

	"reactlab/internal/analytics"
	"reactlab/internal/config"
	"reactlab/internal/db"
	"reactlab/internal/events"
	"reactlab/internal/live"
)

// Store is everything the handlers need from persistence. *db.DB satisfies it
// through dataStore; tests swap in an in-memory fake.
type Store interface {
	Ping() error
	GetOrCreateParticipant(name string) (*db.ParticipantRecord, error)
	CreateSession(participantID string) (string, error)
	GetSession(token string) (*db.SessionRecord, error)
	RecordConsent(token string) error
	SubmitTrial(token string, t db.TrialInsert) error
	InsertRT60Summary(participantID string, s db.RT60Summary) error
	InsertCPSSummary(participantID string, s db.CPSSummary) error
	SoftDeleteParticipant(id string) error
	HardDeleteParticipant(id string) error
	Leaderboard() ([]analytics.LeaderboardEntry, error)
	RT60Overview() ([]analytics.RT60Entry, error)
	CPSOverview() ([]analytics.CPSEntry, error)
}

// dataStore joins the raw storage layer with the analytics queries.
type dataStore struct {
	*db.DB
	queries *analytics.Queries
}

func newDataStore(database *db.DB) *dataStore {
	return &dataStore{DB: database, queries: analytics.NewQueries(database)}
}

func (d *dataStore) Leaderboard() ([]analytics.LeaderboardEntry, error) {
	return d.queries.Leaderboard()
}

func (d *dataStore) RT60Overview() ([]analytics.RT60Entry, error) {
	return d.queries.RT60Overview()
}

func (d *dataStore) CPSOverview() ([]analytics.CPSEntry, error) {
	return d.queries.CPSOverview()
}

type Server struct {
	Cfg       config.Config
	Store     Store           // nil if no database configured
	Summaries chan summaryJob // nil if no database configured
	Bus       *events.Bus
	Hub       *live.Hub
	Clock     clockwork.Clock
}

func New(cfg config.Config) *Server {
	return &Server{
		Cfg:   cfg,
		Bus:   events.NewBus(),
		Hub:   live.NewHub(),
		Clock: clockwork.NewRealClock(),
	}
}
