// Package client wires the data store, time window, alarm engine, title
// composer and clock to the sync transport. All state mutation happens on
// the dispatcher goroutine.
package client

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/alarm"
	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/clock"
	"github.com/mrcode/nightscout-sync/internal/models"
	"github.com/mrcode/nightscout-sync/internal/nightscout"
	"github.com/mrcode/nightscout-sync/internal/notifications"
	"github.com/mrcode/nightscout-sync/internal/store"
	"github.com/mrcode/nightscout-sync/internal/timewindow"
	"github.com/mrcode/nightscout-sync/internal/title"
	"github.com/mrcode/nightscout-sync/internal/transport"
)

// historyHours is how much history the server is asked for on authorize.
const historyHours = 48

// authRenewMargin is how close to expiry the authorization is refreshed.
const authRenewMargin = 15 * time.Minute

// reconnectInterval is how often a failed dial is retried.
const reconnectInterval = 30 * time.Second

// focusPointMaxAge is how far a reading may trail the window edge and still
// be shown as the current value.
const focusPointMaxAge = 15 * time.Minute

// Client is the synchronization core.
type Client struct {
	settings *models.Settings
	caps     *capability.Registry
	logger   *zap.Logger

	store      *store.Store
	window     *timewindow.Controller
	engine     *alarm.Engine
	composer   *title.Composer
	ticker     *clock.Ticker
	dispatcher *transport.Dispatcher
	transport  *transport.WebSocket
	rest       *nightscout.Client
	notifier   *notifications.Manager

	authorized   *nightscout.Authorization
	authorizedAt int64 // when the authorization was last applied, unix millis

	previousNotifyTimestamp int64
	currentTitle            string
	connected               bool

	onTitle  func(string)
	onWindow func(timewindow.Window)

	now    func() time.Time
	runCtx context.Context
}

// New assembles a client around the given transport and REST side channel.
func New(settings *models.Settings, ws *transport.WebSocket, dispatcher *transport.Dispatcher, rest *nightscout.Client, logger *zap.Logger) *Client {
	caps := capability.Defaults()

	c := &Client{
		settings:   settings,
		caps:       caps,
		logger:     logger,
		dispatcher: dispatcher,
		transport:  ws,
		rest:       rest,
		notifier:   notifications.NewManager(logger.Named("notifications")),
		now:        time.Now,
	}

	c.store = store.New(settings, caps, logger.Named("store"))
	c.store.ResetRetro()

	focus := time.Duration(settings.Clone().FocusHours) * time.Hour
	c.window = timewindow.New(focus, logger.Named("timewindow"))
	c.window.OnPersistFocus(func(hours int) {
		settings.SetFocusHours(hours)
		if err := settings.Save(); err != nil {
			logger.Warn("saving settings failed", zap.Error(err))
		}
	})
	c.window.OnChange(func(w timewindow.Window) {
		if c.onWindow != nil {
			c.onWindow(w)
		}
	})

	c.engine = alarm.New(settings, caps, c.store, c, c.notifier, logger.Named("alarm"))
	c.composer = title.NewComposer(caps.ErrorCodes)
	c.ticker = clock.New(dispatcher.Post, c.onMinuteTick, c.onStalenessTick, logger.Named("clock"))

	c.registerHandlers()

	return c
}

// OnTitleChange registers the rendering collaborator for title updates.
func (c *Client) OnTitleChange(fn func(string)) {
	c.onTitle = fn
}

// OnWindowChange registers the rendering collaborator for window updates.
func (c *Client) OnWindowChange(fn func(timewindow.Window)) {
	c.onWindow = fn
}

// Run connects the transport, starts the clock and processes events until
// the context is cancelled. An unreachable server is not fatal: the client
// keeps running with the connecting status and retries the dial in the
// background.
func (c *Client) Run(ctx context.Context) error {
	c.runCtx = ctx

	c.currentTitle = "Connecting to server"
	if c.onTitle != nil {
		c.onTitle(c.currentTitle)
	}

	if err := c.transport.Connect(ctx); err != nil {
		c.logger.Warn("server unreachable, retrying", zap.Error(err))
		go c.reconnectLoop(ctx)
	}

	c.ticker.Start()
	defer c.ticker.Stop()

	c.dispatcher.Run(ctx)
	return nil
}

// reconnectLoop redials until it succeeds or the context ends.
func (c *Client) reconnectLoop(ctx context.Context) {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := c.transport.Connect(ctx)
			if err == nil {
				return
			}
			c.logger.Warn("reconnect failed", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) registerHandlers() {
	c.transport.OnConnect(c.authorize)
	c.transport.OnDisconnect(func(err error) {
		c.connected = false
		c.setTitle("Connecting to server")
		if c.runCtx != nil {
			go c.reconnectLoop(c.runCtx)
		}
	})

	c.transport.Handle(transport.EventAuthorized, c.handleAuthorized)
	c.transport.Handle(transport.EventDataUpdate, c.handleDataUpdate)
	c.transport.Handle(transport.EventRetroUpdate, c.handleRetroUpdate)
	c.transport.Handle(transport.EventNotification, c.handleNotification)
	c.transport.Handle(transport.EventAnnouncement, c.handleAnnouncement)
	c.transport.Handle(transport.EventAlarm, c.handleAlarm)
	c.transport.Handle(transport.EventUrgentAlarm, c.handleUrgentAlarm)
	c.transport.Handle(transport.EventClearAlarm, c.handleClearAlarm)
}

// authorize announces this client to the server after (re)connection.
func (c *Client) authorize() {
	c.connected = true

	settings := c.settings.Clone()
	auth := transport.Authorize{
		Client:  "web",
		History: historyHours,
	}
	switch {
	case c.authorized != nil && c.authorized.Token != "":
		auth.Token = c.authorized.Token
	case settings.UseToken && settings.APIToken != "":
		auth.Token = settings.APIToken
	default:
		auth.Secret = c.rest.SecretHash()
	}

	if err := c.transport.Emit(transport.EventAuthorize, auth); err != nil {
		c.logger.Warn("authorize failed", zap.Error(err))
	}
}

// EmitAck implements alarm.AckEmitter.
func (c *Client) EmitAck(level int, group string, silenceTime time.Duration) {
	err := c.transport.Emit(transport.EventAck, transport.Ack{
		Level:       level,
		Group:       group,
		SilenceTime: silenceTime.Milliseconds(),
	})
	if err != nil {
		c.logger.Warn("ack emit failed", zap.Error(err))
	}
}

// handleAuthorized processes the server's answer to the authorize emit. A
// read-capable grant is adopted; a denial falls back to requesting a fresh
// authorization over the REST side channel.
func (c *Client) handleAuthorized(payload json.RawMessage) {
	var auth nightscout.Authorization
	if err := json.Unmarshal(payload, &auth); err != nil {
		c.logger.Warn("malformed authorized, skipping", zap.Error(err))
		return
	}

	if auth.Read {
		if auth.Token != "" {
			c.SetAuthorization(&auth)
		}
		c.logger.Info("authorized by server")
		return
	}

	c.logger.Warn("authorization denied by server")
	c.requestAuthentication()
}

func (c *Client) handleDataUpdate(payload json.RawMessage) {
	var update models.DataUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		c.logger.Warn("malformed dataUpdate, skipping", zap.Error(err))
		return
	}

	now := c.now()
	c.logger.Info("got dataUpdate", zap.Time("at", now))
	c.store.ApplyLiveUpdate(&update, now)

	if !c.window.InRetroMode() {
		c.window.Brushed(nil, c.store.DataExtent(now))
	}

	c.ticker.KickStaleness()
	c.recomputeTitle(now)
}

func (c *Client) handleRetroUpdate(payload json.RawMessage) {
	var update models.RetroUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		c.logger.Warn("malformed retroUpdate, skipping", zap.Error(err))
		return
	}

	now := c.now()
	c.logger.Info("got retroUpdate", zap.Time("at", now))
	c.store.ApplyRetroUpdate(&update, now)
	c.recomputeTitle(now)
}

// handleNotification forwards a notification to the visualization
// collaborator, deduplicated by timestamp.
func (c *Client) handleNotification(payload json.RawMessage) {
	var notify models.Notify
	if err := json.Unmarshal(payload, &notify); err != nil {
		c.logger.Warn("malformed notification, skipping", zap.Error(err))
		return
	}

	if notify.Timestamp == 0 || notify.Timestamp == c.previousNotifyTimestamp {
		c.logger.Info("no fresh timestamp on notify, not forwarding")
		return
	}
	c.previousNotifyTimestamp = notify.Timestamp
	c.notifier.Forward(&notify)
}

func (c *Client) handleAnnouncement(payload json.RawMessage) {
	var notify models.Notify
	if err := json.Unmarshal(payload, &notify); err != nil {
		c.logger.Warn("malformed announcement, skipping", zap.Error(err))
		return
	}

	now := c.now()
	c.logger.Info("announcement received", zap.String("title", notify.Title))
	c.engine.SetAnnouncement(&notify, now)
	c.recomputeTitle(now)
}

func (c *Client) handleAlarm(payload json.RawMessage) {
	var notify models.Notify
	if err := json.Unmarshal(payload, &notify); err != nil {
		c.logger.Warn("malformed alarm, skipping", zap.Error(err))
		return
	}

	c.engine.HandleAlarm(&notify)
	c.recomputeTitle(c.now())
}

func (c *Client) handleUrgentAlarm(payload json.RawMessage) {
	var notify models.Notify
	if err := json.Unmarshal(payload, &notify); err != nil {
		c.logger.Warn("malformed urgent_alarm, skipping", zap.Error(err))
		return
	}

	c.engine.HandleUrgentAlarm(&notify)
	c.recomputeTitle(c.now())
}

func (c *Client) handleClearAlarm(payload json.RawMessage) {
	var notify models.Notify
	if err := json.Unmarshal(payload, &notify); err != nil {
		c.logger.Warn("malformed clear_alarm, skipping", zap.Error(err))
		return
	}

	now := c.now()
	c.engine.HandleClear(&notify, now)
	c.recomputeTitle(now)
}
