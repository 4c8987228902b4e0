package server

import (
	"github.com/rs/zerolog/log"

	"reactlab/internal/db"
	"reactlab/internal/events"
)

// summaryJob is one finished practice run headed for storage. Exactly one of
// RT60/CPS is set. ParticipantID is filled when the play channel already
// resolved it; the JSON API only knows the name.
type summaryJob struct {
	ParticipantID string
	Name          string
	RT60          *db.RT60Summary
	CPS           *db.CPSSummary
}

// enqueueSummary hands a job to the background writer without blocking the
// request. A full buffer drops the job; recording practice summaries is
// best-effort.
func (s *Server) enqueueSummary(job summaryJob) {
	if s.Summaries == nil {
		log.Warn().Str("name", job.Name).Msg("no summary writer, dropping summary")
		return
	}
	select {
	case s.Summaries <- job:
	default:
		log.Warn().Str("name", job.Name).Msg("summary buffer full, dropping summary")
	}
}

// summaryWriter drains the job channel. Failures are logged, never surfaced
// to the player who already saw their result.
func summaryWriter(store Store, bus *events.Bus, jobs chan summaryJob) {
	for job := range jobs {
		id := job.ParticipantID
		if id == "" {
			p, err := store.GetOrCreateParticipant(job.Name)
			if err != nil {
				log.Error().Err(err).Str("name", job.Name).Msg("resolving participant for summary")
				continue
			}
			id = p.ID
		}
		switch {
		case job.RT60 != nil:
			if err := store.InsertRT60Summary(id, *job.RT60); err != nil {
				log.Error().Err(err).Str("participant", id).Msg("writing rt60 summary")
				continue
			}
			bus.Publish("rt60")
		case job.CPS != nil:
			if err := store.InsertCPSSummary(id, *job.CPS); err != nil {
				log.Error().Err(err).Str("participant", id).Msg("writing cps summary")
				continue
			}
			bus.Publish("cps")
		}
	}
}
