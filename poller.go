package steamtrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultPollInterval = 10 * time.Second

// OfferSource reads trade offers from Steam. Client implements it over the
// Web API.
type OfferSource interface {
	GetTradeOffer(ctx context.Context, id uint64) (*TradeOfferData, []*EconItemDesc, error)
	GetTradeOffers(ctx context.Context, filter uint32, timeCutOff time.Time) (*TradeOfferResponse, error)
}

// Poller settles watched trades and announces new offers. Each tick reads
// every watched offer; once it has left ConfirmationNeed the watched
// instance is updated, settled in the session and dispatched with its state
// event. Received active offers are dispatched once as EventTradeReceive.
//
// A Poller runs at most once: after Stop it cannot be started again.
type Poller struct {
	state    *State
	source   OfferSource
	interval time.Duration
	cron     *cron.Cron
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	started  bool
	received map[uint64]struct{}
}

func NewPoller(state *State, source OfferSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	logger := cron.PrintfLogger(state.log().WithField("component", "poller"))

	return &Poller{
		state:    state,
		source:   source,
		interval: interval,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		stop:     make(chan struct{}),
		received: make(map[uint64]struct{}),
	}
}

// Start schedules polling until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return PollerStartedError
	}

	_, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		tickCtx, cancel := context.WithTimeout(ctx, p.interval)
		defer cancel()

		if err := p.Poll(tickCtx); err != nil {
			p.state.log().WithError(err).Warn("trade poll failed")
		}
	})
	if err != nil {
		return err
	}

	p.started = true
	p.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.stop:
		}
	}()

	return nil
}

// Stop halts the schedule and waits for a running poll to finish. It is safe
// to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.started = true
		p.mu.Unlock()

		close(p.stop)
		<-p.cron.Stop().Done()
	})
}

// Poll runs one polling pass.
func (p *Poller) Poll(ctx context.Context) error {
	var errs []error

	for _, id := range p.state.Session.Watched() {
		if err := p.pollWatched(ctx, id); err != nil {
			if isContextError(err) {
				return err
			}
			errs = append(errs, fmt.Errorf("trade %d: %w", id, err))
		}
	}

	if err := p.pollReceived(ctx); err != nil {
		if isContextError(err) {
			return err
		}
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (p *Poller) pollWatched(ctx context.Context, id uint64) error {
	offer := p.state.Session.WatchedOffer(id)
	if offer == nil {
		return nil
	}

	data, descriptions, err := p.source.GetTradeOffer(ctx, id)
	if err != nil {
		return err
	}
	if err := data.validate(); err != nil {
		return err
	}
	if data.State != nil && *data.State == TradeStateConfirmationNeed {
		return nil
	}

	if offer.Partner == nil {
		partner, err := p.state.fetchUser(ctx, SteamIDFromAccountID(data.Partner))
		if err != nil {
			return err
		}
		offer.Partner = partner
	}
	offer.update(data, descriptions)

	p.state.log().WithFields(logrus.Fields{
		"trade_id": id,
		"state":    offer.State.String(),
	}).Debug("watched trade settled")

	p.state.Session.SettleTrade(id)
	if event, ok := settledEvent(offer.State); ok {
		p.state.Session.Dispatch(event, offer)
	}

	return nil
}

func (p *Poller) pollReceived(ctx context.Context) error {
	response, err := p.source.GetTradeOffers(ctx,
		TradeFilterRecvOffers|TradeFilterActiveOnly|TradeFilterItemDescriptions, time.Time{})
	if err != nil {
		return err
	}

	var errs []error
	active := make(map[uint64]struct{}, len(response.ReceivedOffers))
	for _, data := range response.ReceivedOffers {
		if data == nil || (data.State != nil && *data.State != TradeStateActive) {
			continue
		}
		active[data.ID] = struct{}{}
		if !p.markReceived(data.ID) {
			continue
		}

		offer, err := p.state.TradeOfferFromData(ctx, data, response.Descriptions)
		if err != nil {
			p.forgetReceived(data.ID)
			errs = append(errs, err)
			continue
		}
		p.state.Session.Dispatch(EventTradeReceive, offer)
	}
	p.retainReceived(active)

	return errors.Join(errs...)
}

// retainReceived forgets offers that are no longer active, so the set only
// holds what Steam still lists.
func (p *Poller) retainReceived(active map[uint64]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id := range p.received {
		if _, ok := active[id]; !ok {
			delete(p.received, id)
		}
	}
}

func (p *Poller) markReceived(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.received[id]; ok {
		return false
	}
	p.received[id] = struct{}{}
	return true
}

func (p *Poller) forgetReceived(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.received, id)
}

// settledEvent maps the state a watched trade settled in to its event. An
// active trade was only waiting for its confirmation and gets none.
func settledEvent(state TradeOfferState) (Event, bool) {
	switch state {
	case TradeStateActive:
		return "", false
	case TradeStateAccepted:
		return EventTradeAccept, true
	case TradeStateDeclined:
		return EventTradeDecline, true
	case TradeStateCanceled, TradeStateCanceledBySecondFactor:
		return EventTradeCancel, true
	case TradeStateCountered:
		return EventTradeCounter, true
	case TradeStateExpired:
		return EventTradeExpire, true
	default:
		return EventTradeUpdate, true
	}
}
