// Package retention expires idle rooms and old chat messages in the
// background. Room lifetime is governed solely by the inactivity TTL,
// independent of live participant count; snapshots are never touched.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/store"
)

type Config struct {
	Interval      time.Duration
	RoomTTL       time.Duration
	ChatRetention time.Duration
}

type Sweeper struct {
	store  store.Store
	config Config
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(st store.Store, config Config) *Sweeper {
	return &Sweeper{
		store:  st,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	log.Info().Str("module", "retention").Dur("interval", s.config.Interval).Dur("room_ttl", s.config.RoomTTL).Dur("chat_retention", s.config.ChatRetention).Msg("sweeper started")
}

func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Info().Str("module", "retention").Msg("sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.SweepOnce(context.Background())

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepOnce(context.Background())
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now()

	rooms, err := s.store.DeleteIdleRooms(ctx, now.Add(-s.config.RoomTTL))
	if err != nil {
		log.Error().Str("module", "retention").Err(err).Msg("room sweep failed")
	}

	msgs, err := s.store.DeleteMessagesBefore(ctx, now.Add(-s.config.ChatRetention))
	if err != nil {
		log.Error().Str("module", "retention").Err(err).Msg("message sweep failed")
	}

	if rooms > 0 || msgs > 0 {
		log.Info().Str("module", "retention").Int64("rooms", rooms).Int64("messages", msgs).Msg("swept expired records")
	}
}
