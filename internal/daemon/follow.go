package daemon

import (
	"context"
	"time"

	"github.com/theirongolddev/plotlog/internal/harvest"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/pipeline"
	"github.com/theirongolddev/plotlog/internal/plot"
)

// followPlot starts tailing an unfinished plot log unless it is already
// followed. History up to the current end is consumed silently so only new
// lines are published.
func (s *Service) followPlot(ctx context.Context, path string) {
	s.mu.Lock()
	if _, ok := s.watching[path]; ok {
		s.mu.Unlock()
		return
	}
	p := plot.New(path, s.plotOptions()...)
	s.watching[path] = p
	s.mu.Unlock()

	if err := s.catchUp(ctx, p); err != nil {
		s.log.Warn("plot catch-up failed", "path", path, "err", err)
		s.unwatch(path)
		return
	}
	if st := p.State(); st == model.StateDone || st == model.StateErrored {
		s.unwatch(path)
		return
	}

	p.Subscribe(func(ev model.Event) { s.forwardPlot(path, ev) })
	if err := p.Watch(ctx); err != nil {
		s.log.Warn("plot watch failed", "path", path, "err", err)
		s.unwatch(path)
		return
	}
	s.log.Info("following plot log", "path", path, "state", p.State())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.Wait()
		s.log.Info("plot log released", "path", path, "state", p.State())
		s.unwatch(path)
	}()
}

func (s *Service) catchUp(ctx context.Context, p *plot.Parser) error {
	if s.cfg.Cache != nil {
		if snap, ok := pipeline.ResumableSnapshot(s.cfg.Cache, p.Path()); ok {
			if err := p.Restore(snap); err == nil {
				c, err := p.Continue(ctx)
				if err != nil {
					return err
				}
				_, err = c.Wait(ctx)
				return err
			}
		}
	}
	c, err := p.Start(ctx)
	if err != nil {
		return err
	}
	_, err = c.Wait(ctx)
	return err
}

func (s *Service) unwatch(path string) {
	s.mu.Lock()
	delete(s.watching, path)
	s.mu.Unlock()
}

func (s *Service) forwardPlot(path string, ev model.Event) {
	out := Event{
		Type:      string(ev.Kind),
		Timestamp: time.Now(),
		Path:      path,
		Phase:     ev.Phase,
		Percent:   ev.Percent,
	}
	switch ev.Kind {
	case model.KindParseEnd:
		return
	case model.KindPhaseStart, model.KindPhaseEnd:
		out.Payload = model.Record{model.PhaseKey(ev.Phase): ev.PhaseData}
	case model.KindStarted, model.KindFinished, model.KindDone:
		out.Payload = ev.Record
	case model.KindError:
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
	}
	s.publishEvent(out)
}

// followHarvester tails the harvester log from its stored offset, or from
// the current end the first time it is seen.
func (s *Service) followHarvester(ctx context.Context) {
	path := s.cfg.HarvesterLog
	if path == "" {
		return
	}
	s.mu.RLock()
	active := s.harvester != nil
	s.mu.RUnlock()
	if active {
		return
	}

	h := harvest.New(path,
		harvest.WithLocation(s.cfg.Location),
		harvest.WithLogger(s.cfg.Logger),
		harvest.WithPollInterval(s.cfg.PollInterval),
	)
	offset := harvest.FromEnd
	if s.cfg.Cache != nil {
		off, ok, err := s.cfg.Cache.TailOffset(path)
		if err != nil {
			s.log.Warn("reading harvester offset", "path", path, "err", err)
		} else if ok {
			offset = off
		}
	}

	h.Subscribe(func(ev model.Event) { s.forwardHarvest(h, ev) })
	if err := h.WatchFrom(ctx, offset); err != nil {
		s.log.Warn("harvester watch failed", "path", path, "err", err)
		return
	}
	s.log.Info("following harvester log", "path", path, "offset", offset)

	s.mu.Lock()
	s.harvester = h
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		h.Wait()
		s.mu.Lock()
		s.harvester = nil
		s.mu.Unlock()
	}()
}

func (s *Service) forwardHarvest(h *harvest.Parser, ev model.Event) {
	switch ev.Kind {
	case model.KindEndParse:
		if s.cfg.Cache == nil {
			return
		}
		if sess, ok := h.Session(); ok {
			if err := s.cfg.Cache.SaveTailOffset(h.Path(), sess.Offset); err != nil {
				s.log.Warn("saving harvester offset", "err", err)
			}
		}
		return
	case model.KindSignagePoint:
		s.mu.Lock()
		s.farm.signagePoints++
		s.farm.proofs += ev.Record.Int(harvest.FieldProofs)
		s.mu.Unlock()
	case model.KindWarning:
		s.mu.Lock()
		s.farm.warnings++
		s.mu.Unlock()
	}

	out := Event{
		Type:      string(ev.Kind),
		Timestamp: time.Now(),
		Path:      h.Path(),
		Payload:   ev.Record,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	s.publishEvent(out)
}

func (s *Service) stopFollowers() {
	s.mu.RLock()
	parsers := make([]*plot.Parser, 0, len(s.watching))
	for _, p := range s.watching {
		parsers = append(parsers, p)
	}
	h := s.harvester
	s.mu.RUnlock()

	for _, p := range parsers {
		p.Stop()
	}
	if h != nil {
		h.Stop()
	}
	s.wg.Wait()
}
