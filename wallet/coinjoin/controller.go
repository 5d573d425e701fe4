package coinjoin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// DefaultTickInterval is how often the countdown is refreshed.
	DefaultTickInterval = time.Second
)

var (
	// ErrControllerStopped is returned when an event is fired at a
	// controller that is not running.
	ErrControllerStopped = errors.New("coinjoin controller not running")

	// ErrControllerStarted is returned when Start is called twice.
	ErrControllerStarted = errors.New("coinjoin controller already started")

	// ErrMissingManager is returned when the config lacks a Manager.
	ErrMissingManager = errors.New("coinjoin manager missing")
)

// Manager is the part of the coinjoin client the state machine drives.
type Manager interface {
	// StartCoinJoin lets the wallet join coinjoin rounds.
	StartCoinJoin() error

	// StopCoinJoin makes the wallet leave and stop joining rounds.
	StopCoinJoin() error
}

// Config holds the dependencies of a Controller.
type Config struct {
	// Manager carries out the start and stop effects. Required.
	Manager Manager

	// AutoCoinJoin selects the initial mode.
	AutoCoinJoin bool

	// Ticker drives the countdown refresh. A ticker firing every
	// DefaultTickInterval is used if nil.
	Ticker ticker.Ticker

	// Clock is the source of time. The system clock is used if nil.
	Clock clock.Clock

	// Notify receives the status and progress effects. Optional. It is
	// called from the controller's goroutine and must not block.
	Notify func(Effect)
}

// request is an event waiting to be applied by the main loop.
type request struct {
	event Event
	errc  chan error
}

// Controller runs the state machine for one wallet.
type Controller struct {
	cfg Config

	mu    sync.RWMutex
	model Model

	requests chan request

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	quit      chan struct{}
	wg        sync.WaitGroup
}

// NewController creates a controller. It does nothing until started.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Manager == nil {
		return nil, ErrMissingManager
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	if cfg.Ticker == nil {
		cfg.Ticker = ticker.New(DefaultTickInterval)
	}

	return &Controller{
		cfg:      cfg,
		requests: make(chan request),
		started:  make(chan struct{}),
		quit:     make(chan struct{}),
	}, nil
}

// Start enters the initial state and launches the event loop.
func (c *Controller) Start() error {
	err := ErrControllerStarted
	c.startOnce.Do(func() {
		err = nil

		model, effects := Initial(c.cfg.AutoCoinJoin, c.cfg.Clock.Now())
		c.setModel(model)
		c.apply(effects)

		c.cfg.Ticker.Resume()

		c.wg.Add(1)
		go c.eventLoop()

		close(c.started)

		log.Infof("Coinjoin controller started in state %v", model.State)
	})

	return err
}

// Stop shuts the event loop down and waits for it to exit.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.wg.Wait()
		c.cfg.Ticker.Stop()

		log.Infof("Coinjoin controller stopped")
	})
}

// Fire applies the event and blocks until its effects were carried out. It
// returns ErrTransitionForbidden if the current state does not permit the
// event.
func (c *Controller) Fire(ev Event) error {
	select {
	case <-c.started:
	default:
		return ErrControllerStopped
	}

	req := request{event: ev, errc: make(chan error, 1)}

	select {
	case c.requests <- req:
	case <-c.quit:
		return ErrControllerStopped
	}

	select {
	case err := <-req.errc:
		return err
	case <-c.quit:
		return ErrControllerStopped
	}
}

// SetAutoCoinJoin switches between automatic and manual coinjoins.
func (c *Controller) SetAutoCoinJoin(enabled bool) error {
	if enabled {
		return c.Fire(AutoOn{})
	}

	return c.Fire(AutoOff{})
}

// Model returns the current model.
func (c *Controller) Model() Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.model
}

// State returns the current state.
func (c *Controller) State() State {
	return c.Model().State
}

// eventLoop serializes events and ticks through the state machine.
//
// NOTE: This MUST be run as a goroutine.
func (c *Controller) eventLoop() {
	defer c.wg.Done()

	for {
		select {
		case req := <-c.requests:
			req.errc <- c.handle(req.event)

		case <-c.cfg.Ticker.Ticks():
			if err := c.handle(Tick{}); err != nil {
				log.Errorf("Unable to process tick: %v", err)
			}

		case <-c.quit:
			return
		}
	}
}

// handle runs one event through the state machine and applies the effects.
func (c *Controller) handle(ev Event) error {
	next, effects, err := Transition(c.Model(), ev, c.cfg.Clock.Now())
	if err != nil {
		return err
	}

	c.setModel(next)
	c.apply(effects)

	return nil
}

func (c *Controller) setModel(m Model) {
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
}

// apply carries out the effects in order. Failures of the manager are
// logged and do not roll the state back, the next round notification will
// correct it.
func (c *Controller) apply(effects []Effect) {
	for _, effect := range effects {
		var err error
		switch effect.(type) {
		case StartCoinJoin:
			err = c.cfg.Manager.StartCoinJoin()

		case StopCoinJoin:
			err = c.cfg.Manager.StopCoinJoin()

		default:
			if c.cfg.Notify != nil {
				c.cfg.Notify(effect)
			}
		}

		if err != nil {
			log.Warnf("Unable to apply %v: %v", effectName(effect), err)
		}
	}
}

func effectName(effect Effect) string {
	return fmt.Sprintf("%T", effect)
}
